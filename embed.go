package docstringwebui

import "embed"

// TemplateFS holds the page templates: layout/ for the shared frame, pages/ for the home and submission
// pages and partials/ for the bot panels and verbosity sliders.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS holds the stylesheet and the browser script that talks to the submission and stream
// endpoints.
//
//go:embed static/*
var StaticFS embed.FS
