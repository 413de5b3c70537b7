package guard

// PromptKind identifies one of the guard's modal prompts.
type PromptKind int

const (
	PromptLock PromptKind = iota
	PromptAgreement
	PromptRestricted
	PromptExpired
)

func (k PromptKind) String() string {
	switch k {
	case PromptLock:
		return "lock"
	case PromptAgreement:
		return "agreement"
	case PromptRestricted:
		return "restricted"
	case PromptExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Prompt is a blocking modal. Input asks for a password-style value.
type Prompt struct {
	Kind    PromptKind
	Title   string
	Body    string
	Confirm string
	Cancel  string
	Input   bool
}

// UI is everything the guard does to the page. Calls happen on the guard's
// event loop and must not block on user input.
type UI interface {
	Redirect(location string)
	Reload()
	ShowPrompt(p Prompt)
	DismissPrompt(kind PromptKind)
	ShowValidation(kind PromptKind, msg string)
	ShowFooter(email, address string)
}

// Messages provides localized prompt texts.
type Messages interface {
	Text(id string, data map[string]any) string
}
