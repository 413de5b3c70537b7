// Package i18n loads the guard's prompt texts from embedded YAML catalogs.
package i18n

import (
	"embed"
	"errors"
	"io/fs"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Message ids used by the guard prompts.
const (
	LockTitle         = "lock_title"
	LockBody          = "lock_body"
	LockConfirm       = "lock_confirm"
	LockCancel        = "lock_cancel"
	LockInvalid       = "lock_invalid"
	LockUnavailable   = "lock_unavailable"
	RestrictedTitle   = "restricted_title"
	RestrictedBody    = "restricted_body"
	RestrictedConfirm = "restricted_confirm"
	AgreementTitle    = "agreement_title"
	AgreementBody     = "agreement_body"
	AgreementConfirm  = "agreement_confirm"
	AgreementFailed   = "agreement_failed"
	ExpiredTitle      = "expired_title"
	ExpiredBody       = "expired_body"
)

// Catalog translates message ids for one language.
type Catalog struct {
	localizer *i18n.Localizer
	fallback  *i18n.Localizer
}

// New builds a catalog for lang, falling back to English for missing
// languages or messages.
func New(lang string) (*Catalog, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, f.Name()); err != nil {
			return nil, err
		}
	}

	return &Catalog{
		localizer: i18n.NewLocalizer(bundle, lang),
		fallback:  i18n.NewLocalizer(bundle, "en"),
	}, nil
}

// Text returns the translation of id with data applied to its template. An
// unknown id is returned as is.
func (c *Catalog) Text(id string, data map[string]any) string {
	if c == nil || c.localizer == nil {
		return id
	}
	lc := &i18n.LocalizeConfig{MessageID: id, TemplateData: data}
	msg, err := c.localizer.Localize(lc)
	var missing *i18n.MessageNotFoundErr
	if errors.As(err, &missing) && c.fallback != nil {
		// A language file may lag behind en.yaml.
		msg, err = c.fallback.Localize(lc)
	}
	if err != nil {
		return id
	}
	return msg
}
