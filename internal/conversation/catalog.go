package conversation

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

//go:embed catalogs/*.yaml
var embeddedCatalogs embed.FS

// DefaultLocale is used when no locale is configured or the configured one is unknown.
const DefaultLocale = "en"

// Labels are the option labels students click or type.
type Labels struct {
	SubmitDocument string `yaml:"submit_document"`
	CheckStatus    string `yaml:"check_status"`
	Back           string `yaml:"back"`
	SubmitAnother  string `yaml:"submit_another"`
	EndChat        string `yaml:"end_chat"`
	Exit           string `yaml:"exit"`
	FixAndResubmit string `yaml:"fix_and_resubmit"`
	SubmitDirectly string `yaml:"submit_directly"`
	FilterAll      string `yaml:"filter_all"`
	FilterApproved string `yaml:"filter_approved"`
	FilterRejected string `yaml:"filter_rejected"`
	FilterInReview string `yaml:"filter_in_review"`
}

// Texts are bot message templates. Placeholders look like {name}.
type Texts struct {
	Greeting             string `yaml:"greeting"`
	SelectDepartment     string `yaml:"select_department"`
	SelectDocType        string `yaml:"select_doc_type"`
	DeadlineValid        string `yaml:"deadline_valid"`
	DeadlineExpired      string `yaml:"deadline_expired"`
	DeadlineFallback     string `yaml:"deadline_fallback"`
	UploadPrompt         string `yaml:"upload_prompt"`
	RequiredField        string `yaml:"required_field"`
	SelectDocTypeFirst   string `yaml:"select_doc_type_first"`
	Processing           string `yaml:"processing"`
	Progress             string `yaml:"progress"`
	OCRInProgress        string `yaml:"ocr_in_progress"`
	Waiting              string `yaml:"waiting"`
	StillInReview        string `yaml:"still_in_review"`
	ReviewPassed         string `yaml:"review_passed"`
	ForwardedToAdmin     string `yaml:"forwarded_to_admin"`
	ReviewFailed         string `yaml:"review_failed"`
	NoReason             string `yaml:"no_reason"`
	AdminRejected        string `yaml:"admin_rejected"`
	NoRejectionMemo      string `yaml:"no_rejection_memo"`
	AutomaticReviewError string `yaml:"automatic_review_error"`
	MissingSubmissionID  string `yaml:"missing_submission_id"`
	ResultUnavailable    string `yaml:"result_unavailable"`
	ServerError          string `yaml:"server_error"`
	Goodbye              string `yaml:"goodbye"`
	Unsupported          string `yaml:"unsupported"`
	HistoryHeader        string `yaml:"history_header"`
	HistoryRow           string `yaml:"history_row"`
	HistoryEmpty         string `yaml:"history_empty"`
	HistoryError         string `yaml:"history_error"`
	Untitled             string `yaml:"untitled"`
	ResubmitPrompt       string `yaml:"resubmit_prompt"`
	NothingToResubmit    string `yaml:"nothing_to_resubmit"`
	Submitting           string `yaml:"submitting"`
}

// Catalog holds every student-facing string of a locale.
type Catalog struct {
	Locale                string                             `yaml:"locale"`
	Labels                Labels                             `yaml:"labels"`
	StatusLabels          map[domain.SubmissionStatus]string `yaml:"status_labels"`
	Texts                 Texts                              `yaml:"texts"`
	DeadlineErrorKeywords []string                           `yaml:"deadline_error_keywords"`
	UploadAccept          []string                           `yaml:"upload_accept"`
}

// CatalogProvider hands out the catalog currently in effect.
type CatalogProvider interface {
	Catalog() *Catalog
}

// Catalog lets a fixed *Catalog act as its own provider.
func (c *Catalog) Catalog() *Catalog { return c }

// LoadCatalog returns the embedded catalog of a locale, falling back to English.
func LoadCatalog(locale string) (*Catalog, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	data, err := embeddedCatalogs.ReadFile("catalogs/" + locale + ".yaml")
	if err != nil {
		if locale == DefaultLocale {
			return nil, fmt.Errorf("embedded catalog %q: %w", locale, err)
		}
		return LoadCatalog(DefaultLocale)
	}
	return ParseCatalog(data, nil)
}

// MustLoadCatalog is LoadCatalog for embedded data that is known to be valid.
func MustLoadCatalog(locale string) *Catalog {
	c, err := LoadCatalog(locale)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalog decodes YAML on top of base. Keys missing from data keep the
// base value; base itself is not modified.
func ParseCatalog(data []byte, base *Catalog) (*Catalog, error) {
	out := &Catalog{}
	if base != nil {
		out = base.clone()
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadCatalogFile merges an override file over base.
func LoadCatalogFile(path string, base *Catalog) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data, base)
}

func (c *Catalog) clone() *Catalog {
	out := *c
	out.StatusLabels = make(map[domain.SubmissionStatus]string, len(c.StatusLabels))
	for k, v := range c.StatusLabels {
		out.StatusLabels[k] = v
	}
	out.DeadlineErrorKeywords = append([]string(nil), c.DeadlineErrorKeywords...)
	out.UploadAccept = append([]string(nil), c.UploadAccept...)
	return &out
}

func (c *Catalog) validate() error {
	required := map[string]string{
		"labels.submit_document":  c.Labels.SubmitDocument,
		"labels.check_status":     c.Labels.CheckStatus,
		"texts.greeting":          c.Texts.Greeting,
		"texts.select_department": c.Texts.SelectDepartment,
		"texts.unsupported":       c.Texts.Unsupported,
		"texts.server_error":      c.Texts.ServerError,
	}
	for key, val := range required {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("catalog: %s is empty", key)
		}
	}
	return nil
}

// StatusLabel localises a submission status, echoing unknown statuses.
func (c *Catalog) StatusLabel(s domain.SubmissionStatus) string {
	if label, ok := c.StatusLabels[s]; ok && label != "" {
		return label
	}
	return string(s)
}

// IsDeadlineError reports whether an upstream message talks about the deadline.
func (c *Catalog) IsDeadlineError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range c.DeadlineErrorKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// fill replaces {key} placeholders with values given as key, value pairs.
func fill(tmpl string, kv ...string) string {
	if len(kv) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// StaticCatalog is a CatalogProvider whose catalog can be swapped atomically.
type StaticCatalog struct {
	current atomic.Pointer[Catalog]
}

// NewStaticCatalog wraps c.
func NewStaticCatalog(c *Catalog) *StaticCatalog {
	s := &StaticCatalog{}
	s.current.Store(c)
	return s
}

// Catalog returns the catalog in effect.
func (s *StaticCatalog) Catalog() *Catalog {
	return s.current.Load()
}

// Store swaps the catalog in effect.
func (s *StaticCatalog) Store(c *Catalog) {
	s.current.Store(c)
}
