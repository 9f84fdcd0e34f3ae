package webclock

const indexPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>dgtclock</title>
<style>
body { background: #222; color: #eee; font-family: monospace; text-align: center; }
#display { font-size: 5em; margin-top: 1em; letter-spacing: 0.1em; }
#squares { color: #8c8; margin-top: 0.5em; }
.run { color: #fc4; }
</style>
</head>
<body>
<div id="display">--:--</div>
<div id="squares"></div>
<script>
var state = null;
function hms(s) {
  var h = Math.floor(s / 3600), m = Math.floor(s % 3600 / 60), x = s % 60;
  return h + ":" + String(m).padStart(2, "0") + ":" + String(x).padStart(2, "0");
}
function render() {
  if (!state) return;
  var el = document.getElementById("display");
  if (state.mode === "text") {
    el.textContent = state.text;
  } else {
    var l = state.left, r = state.right;
    if (state.running !== "none") {
      var e = Math.floor((Date.now() - state.at) / 1000);
      if (state.running === "left") l = Math.max(l - e, 0);
      if (state.running === "right") r = Math.max(r - e, 0);
    }
    el.innerHTML = '<span class="' + (state.running === "left" ? "run" : "") + '">' + hms(l) +
      '</span> <span class="' + (state.running === "right" ? "run" : "") + '">' + hms(r) + "</span>";
  }
  document.getElementById("squares").textContent = state.from ? state.from + " " + state.to : "";
}
function connect() {
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = function (ev) {
    var m = JSON.parse(ev.data);
    if (m.type === "display") { state = m.display; state.at = Date.now(); render(); }
  };
  ws.onclose = function () { setTimeout(connect, 1000); };
}
setInterval(render, 250);
connect();
</script>
</body>
</html>
`
