package scaffolding

const layoutTemplate = `<hpy-head>
    <title>My HPY Site</title>
    <meta name="description" content="A site built with hpy">
</hpy-head>

<style>
    body { font-family: system-ui, sans-serif; margin: 0; }
    header { padding: 1rem 2rem; background: #1a1a2e; }
    header a { color: #e0e0ff; margin-right: 1rem; text-decoration: none; }
    main { max-width: 48rem; margin: 0 auto; padding: 2rem; }
</style>

<hpy-body>
    <header>
        <a href="index.html">Home</a>
        <a href="about.html">About</a>
    </header>
    <main>
        <!-- HPY_PAGE_CONTENT -->
    </main>
</hpy-body>

<python>
# Layout scripts run on every page.
</python>
`

const indexTemplate = `<hpy-head>
    <title>Home</title>
</hpy-head>

<style>
    h1 { color: #1a1a2e; }
</style>

<html>
    <h1>Welcome</h1>
    <p>Edit <code>src/index.hpy</code> and rebuild to see changes.</p>
    <Counter label="Clicks"/>
</html>

<python>
from browser import document

def greet(event):
    byid("greeting").text = "Hello from Python!"

if byid("greeting") is None:
    pass
</python>
`

const aboutTemplate = `<hpy-head>
    <title>About</title>
</hpy-head>

<html>
    <h1>About</h1>
    <p>This site compiles .hpy documents into standalone HTML pages.</p>
</html>
`

const counterComponentTemplate = `<html>
    <div class="counter">
        <span>{props.label}:</span>
        <button class="counter-btn">0</button>
    </div>
</html>

<style>
    .counter { display: inline-flex; gap: 0.5rem; align-items: center; }
    .counter-btn { padding: 0.25rem 0.75rem; cursor: pointer; }
</style>
`

const faviconTemplate = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 16 16">
  <rect width="16" height="16" rx="3" fill="#1a1a2e"/>
  <text x="8" y="12" font-size="10" fill="#e0e0ff" text-anchor="middle">h</text>
</svg>
`

const gitignoreTemplate = `dist/
.hpy_dev_output/
__pycache__/
`
