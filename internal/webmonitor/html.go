package webmonitor

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Vision Analysis</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <link rel="stylesheet" href="/assets/console.css">
</head>
<body>
    <header class="header">
        <div class="title">Vision Analysis</div>
        <div id="badge"><span class="badge badge-connecting" title="Status: Connecting...">Connecting...</span></div>
    </header>

    <main class="grid">
        <section class="panel feed">
            <h2>Webcam</h2>
            <img id="stream" src="/stream" alt="Live camera preview">
            <p class="error" id="camera-error" hidden></p>
            <div class="controls">
                <button type="button" id="btn-start">Start Camera</button>
                <button type="button" id="btn-stop" hidden>Stop Camera</button>
                <button type="button" id="btn-analyze" disabled>Analyze Frame</button>
            </div>
        </section>

        <aside class="panel" id="status-panel"></aside>
    </main>

    <section class="panel" id="analysis-panel"></section>

    <div class="toasts" id="toasts"></div>

    <script src="/assets/console.js"></script>
</body>
</html>
`

const consoleCSS = `
body { margin: 0; font-family: system-ui, sans-serif; background: #f7f7f9; color: #1a1a22; }
.header { display: flex; justify-content: space-between; align-items: center; padding: 12px 24px; border-bottom: 1px solid #e1e1e6; background: #fff; }
.title { font-size: 20px; font-weight: 700; }
.grid { display: grid; grid-template-columns: 2fr 1fr; gap: 24px; padding: 24px; }
.panel { background: #fff; border: 1px solid #e1e1e6; border-radius: 8px; padding: 16px; margin: 0 24px 24px; }
.grid .panel { margin: 0; }
.feed img { width: 100%; background: #000; border-radius: 4px; }
.controls { display: flex; gap: 8px; margin-top: 12px; }
.badge { display: inline-block; padding: 4px 10px; border-radius: 999px; font-size: 12px; }
.badge-connecting { background: #fef08a; color: #713f12; }
.badge-connected { background: #bbf7d0; color: #14532d; }
.badge-disconnected { background: #fecaca; color: #7f1d1d; }
.muted { color: #6b7280; }
.error { color: #b91c1c; }
.band-destructive { color: #ef4444; }
.band-warning { color: #f59e0b; }
.band-success { color: #00bd00; }
dl { display: grid; grid-template-columns: auto 1fr; gap: 4px 12px; }
dd { margin: 0; text-align: right; font-weight: 500; }
.analysis-grid { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; }
.placeholder { text-align: center; padding: 48px; }
.toasts { position: fixed; bottom: 16px; right: 16px; display: flex; flex-direction: column; gap: 8px; }
.toast { background: #fff; border: 1px solid #e1e1e6; border-radius: 6px; padding: 12px 16px; min-width: 260px; box-shadow: 0 2px 8px rgba(0,0,0,0.1); }
.toast-destructive { background: #ef4444; color: #fff; border-color: #ef4444; }
.toast-title { font-weight: 600; }
`

const consoleJS = `
(function () {
  const $ = (id) => document.getElementById(id);

  async function panel(path, id) {
    try {
      const res = await fetch(path, { cache: 'no-store' });
      if (res.ok) $(id).innerHTML = await res.text();
    } catch (e) { /* next event retries */ }
  }

  function applyState(state) {
    const cam = state.camera || {};
    $('btn-start').hidden = cam.streaming;
    $('btn-stop').hidden = !cam.streaming;
    $('btn-analyze').disabled = !cam.streaming || state.analyzing;
    $('btn-analyze').textContent = state.analyzing ? 'Analyzing...' : 'Analyze Frame';
    $('camera-error').hidden = !cam.error;
    $('camera-error').textContent = cam.error ? 'Could not access webcam. Please check permissions.' : '';
    panel('/panel/badge', 'badge');
    panel('/panel/status', 'status-panel');
    panel('/panel/analysis', 'analysis-panel');
  }

  function showToast(toast) {
    const el = document.createElement('div');
    el.className = 'toast toast-' + toast.variant;
    const title = document.createElement('div');
    title.className = 'toast-title';
    title.textContent = toast.title;
    const desc = document.createElement('div');
    desc.textContent = toast.description;
    el.append(title, desc);
    $('toasts').append(el);
    setTimeout(() => el.remove(), 5000);
  }

  function post(path) { return fetch(path, { method: 'POST' }).catch(() => {}); }

  $('btn-start').onclick = () => post('/api/camera/start');
  $('btn-stop').onclick = () => post('/api/camera/stop');
  $('btn-analyze').onclick = () => post('/api/analyze');

  const events = new EventSource('/api/events');
  events.onmessage = (msg) => {
    const ev = JSON.parse(msg.data);
    if (ev.type === 'state' && ev.state) applyState(ev.state);
    if (ev.type === 'toast' && ev.toast) showToast(ev.toast);
  };
})();
`
