package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/logfields"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

// selectorModule is one row of the selector page.
type selectorModule struct {
	ID          string
	Description template.HTML
}

type selectorPage struct {
	Modules []selectorModule
}

type guideStep struct {
	Number  int
	Title   string
	Content []string
}

// tokenGuide walks a user through creating a Discord bot token.
var tokenGuide = []guideStep{
	{1, "Open the Discord developer portal", []string{"Open https://discord.com/developers/applications in a browser."}},
	{2, "Sign in", []string{"Sign in with your Discord account if you are not already signed in."}},
	{3, "Create an application", []string{
		`Click "New Application" in the top right corner.`,
		`Enter a name for the application and click "Create".`,
	}},
	{4, "Configure the application", []string{
		`The "General Information" page opens after creation.`,
		"Set an icon and description if you like, then save your changes.",
	}},
	{5, "Add a bot", []string{
		`Select the "Bot" tab in the left menu.`,
		`Click "Add Bot" and confirm.`,
	}},
	{6, "Copy the bot token", []string{
		`Under "Token" click "Reset Token" to reveal a new token.`,
		"Copy the token and paste it into the launcher when asked. Never share it.",
	}},
	{7, "Enable intents", []string{
		`Under "Privileged Gateway Intents" enable the message content and server members intents.`,
	}},
	{8, "Invite the bot", []string{
		`Open "OAuth2", select the "bot" scope and the permissions your modules need, then open the generated URL to add the bot to your server.`,
	}},
}

// PageHandlers renders the HTML pages.
type PageHandlers struct {
	service      ServiceFunc
	errorAdapter *derrors.HTTPErrorAdapter
	logger       *slog.Logger
}

// NewPageHandlers creates page handlers.
func NewPageHandlers(service ServiceFunc, logger *slog.Logger) *PageHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandlers{
		service:      service,
		errorAdapter: derrors.NewHTTPErrorAdapter(logger),
		logger:       logger,
	}
}

// HandleSelector renders the module selection form.
func (h *PageHandlers) HandleSelector(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service().Modules(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	page := selectorPage{Modules: make([]selectorModule, 0, len(modules))}
	for _, m := range modules {
		// Descriptions are rendered by the catalog from operator-provided markdown.
		page.Modules = append(page.Modules, selectorModule{ID: m.ID, Description: template.HTML(m.Description)}) //nolint:gosec
	}
	h.render(w, r, "selector.html", page)
}

// HandleGuide renders the bot token guide.
func (h *PageHandlers) HandleGuide(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "guide.html", tokenGuide)
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			derrors.WrapError(err, derrors.CategoryInternal, "failed to render page").WithContext("page", name).Build())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("Failed to write page", logfields.Name(name), logfields.Error(err))
	}
}
