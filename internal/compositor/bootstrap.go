package compositor

import (
	"fmt"

	"github.com/conneroisu/hpy/internal/config"
	"github.com/conneroisu/hpy/internal/version"
)

// HelperCode is the Brython helper prelude injected ahead of the first
// embedded python block and into copied external scripts.
const HelperCode = `# --- HPY Helper Functions (Injected) ---
from browser import document
import sys as _hpy_sys
def byid(element_id):
    try: return document[element_id]
    except KeyError: return None
def qs(selector): return document.select_one(selector)
def qsa(selector): return document.select(selector)
# --- End Helper Functions ---
`

// BootstrapScriptTags returns the CDN script tags for the pinned runtime.
func BootstrapScriptTags() string {
	return fmt.Sprintf(
		`<script src="https://cdn.jsdelivr.net/npm/brython@%[1]s/brython.min.js"></script>
    <script src="https://cdn.jsdelivr.net/npm/brython@%[1]s/brython_stdlib.js"></script>`,
		config.BrythonVersion)
}

// LiveReloadScript returns the polling reload block appended before </body>
// in development-watch builds. The client issues HEAD requests against the
// trigger file and reloads when its Last-Modified header changes.
func LiveReloadScript() string {
	return fmt.Sprintf(`<script>
// hpy live reload v%s
(function() {
    const RELOAD_FILE = '/%s';
    const POLLING_INTERVAL = 1500;
    let currentLastModified = null;
    let initialFetchAttempted = false;

    async function pollForChanges() {
        if (!document.hidden) {
            try {
                const response = await fetch(RELOAD_FILE, { method: 'HEAD', cache: 'no-store' });
                if (response.ok) {
                    const serverLastModified = response.headers.get('Last-Modified');
                    if (serverLastModified) {
                        if (initialFetchAttempted && currentLastModified && serverLastModified !== currentLastModified) {
                            window.location.reload();
                            return;
                        }
                        currentLastModified = serverLastModified;
                    }
                    initialFetchAttempted = true;
                }
            } catch (error) { /* server restarting; keep polling */ }
        }
        setTimeout(pollForChanges, POLLING_INTERVAL);
    }

    fetch(RELOAD_FILE, { method: 'HEAD', cache: 'no-store' })
        .then(response => {
            if (response.ok) {
                currentLastModified = response.headers.get('Last-Modified');
            }
        })
        .catch(e => {})
        .finally(() => {
            initialFetchAttempted = true;
            setTimeout(pollForChanges, POLLING_INTERVAL);
        });
})();
</script>`, version.Version, config.ReloadTriggerName)
}
