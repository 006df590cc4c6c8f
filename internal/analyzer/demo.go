package analyzer

// DemoMarkup is a small page that trips most rule families. The CLI and API
// serve it as sample input.
const DemoMarkup = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta http-equiv="Content-Security-Policy" content="default-src 'self'; script-src 'self' 'unsafe-inline'">
  <title>Account settings</title>
  <link rel="stylesheet" href="http://cdn.example.com/styles.css">
  <script src="https://cdn.example.com/app.js"></script>
</head>
<body onload="init()">
  <!-- admin password: hunter2 (remove before release) -->
  <a href="https://partner.example.org" target="_blank">Partner portal</a>
  <img src="/img/banner.png" alt="Banner">
  <form method="post" action="http://example.com/settings">
    <input type="text" name="email">
    <button type="submit">Save</button>
  </form>
  <iframe src="https://widgets.example.net/chat"></iframe>
  <script>
    document.getElementById("out").innerHTML = location.hash;
    eval(window.name);
  </script>
</body>
</html>
`
