package server

import (
	"html/template"

	"github.com/zine-studio/zine-landing/internal/funnel"
)

var templateFuncs = template.FuncMap{
	"styleName": func(id string) string { return funnel.OptionName(funnel.Styles, id) },
}

const pageTemplates = `
{{define "head"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} | FRAMED</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;color:#111;background:#fff}
header,main,footer{max-width:60rem;margin:0 auto;padding:1.5rem}
.cards{display:grid;grid-template-columns:repeat(auto-fit,minmax(12rem,1fr));gap:1rem}
.card{border:1px solid #e5e5e5;border-radius:.75rem;padding:1rem;text-decoration:none;color:inherit}
.card.selected{border-color:#111}
.cta{display:inline-block;background:#111;color:#fff;padding:.75rem 1.5rem;border-radius:999px;text-decoration:none}
.zen .explainer{display:none}
</style>
</head>
<body class="{{.Variant}}">
<header><a href="/" class="brand">FRAMED</a></header>
<main>
{{end}}

{{define "foot"}}</main>
<footer>&copy; FRAMED. Printed zines from your photos.</footer>
<script src="/zl.js" data-pv="{{.PageViewID}}" data-ping="{{.PingMillis}}" defer></script>
</body>
</html>
{{end}}

{{define "landing"}}{{template "head" .}}
<section class="hero">
  <h1>Turn your photos into a printed zine</h1>
  <p>Pick your favorite shots, choose a look, and we handle the layout and printing.</p>
  <a class="cta" href="/start" data-zl-event="hero_cta_click" data-zl-label="primary_cta" data-zl-value="{{.Price}}">Make my zine for ${{.Price}}</a>
  <a href="#how" data-zl-event="hero_cta_click" data-zl-label="secondary_cta">See how it works</a>
</section>
<section id="how" class="explainer">
  <h2>How it works</h2>
  <div class="cards">
    <div class="card"><h3>Upload</h3><p>Drop in the photos you love.</p>
      <a href="#styles" data-zl-event="card_learn_more" data-zl-label="upload">Learn more</a></div>
    <div class="card"><h3>Style</h3><p>Choose a theme that fits the story.</p>
      <a href="#styles" data-zl-event="card_learn_more" data-zl-label="style">Learn more</a></div>
    <div class="card"><h3>Print</h3><p>A finished zine arrives at your door.</p>
      <a href="#styles" data-zl-event="card_learn_more" data-zl-label="print">Learn more</a></div>
  </div>
</section>
<section id="styles" class="explainer">
  <h2>Styles</h2>
  <div class="cards">
  {{range .Styles}}<a class="card" href="/start" data-zl-event="style_preview_click" data-zl-label="{{.ID}}">{{.Name}}</a>
  {{end}}</div>
</section>
<section>
  <a class="cta" href="/start" data-zl-event="final_cta_click" data-zl-label="bottom_cta" data-zl-value="{{.Price}}">Start my zine</a>
</section>
{{template "foot" .}}{{end}}

{{define "start"}}{{template "head" .}}
<h1>What is your zine for?</h1>
<div class="cards">
{{range .Purposes}}<a class="card{{if eq .ID $.Selections.Purpose}} selected{{end}}" href="/themes?event={{.ID}}" data-zl-event="purpose_selected" data-zl-label="{{.ID}}">
  <h3>{{.Name}}</h3><p>{{.Description}}</p></a>
{{end}}</div>
<p>Zines start at ${{.Price}}.</p>
{{template "foot" .}}{{end}}

{{define "themes"}}{{template "head" .}}
<h1>Pick a look</h1>
<div class="cards">
{{range .Themes}}<a class="card{{if eq .ID $.Selections.Theme}} selected{{end}}" href="/audience?event={{$.Selections.Purpose}}&theme={{.ID}}" data-zl-event="theme_selected" data-zl-label="{{.ID}}" data-zl-purpose="{{$.Selections.Purpose}}">
  <h3>{{.Name}}</h3></a>
{{end}}</div>
{{template "foot" .}}{{end}}

{{define "audience"}}{{template "head" .}}
<h1>Who is it for?</h1>
<div class="cards">
{{range .Audiences}}<a class="card{{if eq .ID $.Selections.Audience}} selected{{end}}" href="/thanks?event={{$.Selections.Purpose}}&theme={{$.Selections.Theme}}&audience={{.ID}}&style={{$.Selections.Theme}}" data-zl-event="audience_selected audience_continue" data-zl-label="{{.ID}}" data-zl-purpose="{{$.Selections.Purpose}}" data-zl-theme="{{$.Selections.Theme}}">
  <h3>{{.Name}}</h3><p>{{.Description}}</p></a>
{{end}}</div>
{{template "foot" .}}{{end}}

{{define "thanks"}}{{template "head" .}}
<h1>Almost there</h1>
<p>Your {{styleName .Style}} zine is being prepared. Join the waitlist and we will let you know when printing opens.</p>
<form id="waitlist" data-style="{{.Style}}">
  <input type="email" name="email" placeholder="your@email.com" required>
  <input type="text" name="contact" placeholder="@handle (optional)">
  <button class="cta" type="submit">Join the waitlist</button>
</form>
<p id="waitlist-result" hidden></p>
{{template "foot" .}}{{end}}
`
