package template

import (
	"embed"
	"html"
	"io/fs"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	stdtemplate "html/template"

	humanize "github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/jobhack/web/internal/job"
	"github.com/microcosm-cc/bluemonday"
	blackfriday "gopkg.in/russross/blackfriday.v2"
)

//go:embed views/*.html
var views embed.FS

type Template struct {
	templates *stdtemplate.Template
	strict    *bluemonday.Policy
	ugc       *bluemonday.Policy
}

// NewTemplate parses the embedded views.
func NewTemplate() *Template {
	return NewTemplateFS(views, "views/*.html")
}

func NewTemplateFS(fsys fs.FS, pattern string) *Template {
	t := &Template{
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
	}
	funcMap := stdtemplate.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"humantime": humanize.Time,
		"humannumber": func(n int) string {
			return humanize.Comma(int64(n))
		},
		"humanbytes": func(n int64) string {
			return humanize.IBytes(uint64(n))
		},
		"jobsfound": func(n int) string {
			return english.Plural(n, "job", "jobs") + " found"
		},
		"isTimeZero": func(t time.Time) bool {
			return t.IsZero()
		},
		"jobpath": job.Path,
		"description": func(j job.Job) stdtemplate.HTML {
			return t.Description(j.Description, j.MatchedKeywords)
		},
	}
	t.templates = stdtemplate.Must(stdtemplate.New("stdtmpl").Funcs(funcMap).ParseFS(fsys, pattern))
	return t
}

func (t *Template) Render(w http.ResponseWriter, status int, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return t.templates.ExecuteTemplate(w, name, data)
}

func (t *Template) MarkdownToHTML(s string) stdtemplate.HTML {
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.Safelink |
			blackfriday.NofollowLinks |
			blackfriday.NoreferrerLinks |
			blackfriday.HrefTargetBlank,
	})
	return stdtemplate.HTML(t.ugc.SanitizeBytes(blackfriday.Run([]byte(s), blackfriday.WithRenderer(renderer))))
}

// Description renders a job description. With keywords the text is shown
// plain with every keyword marked; otherwise it is rendered as markdown.
func (t *Template) Description(s string, keywords []string) stdtemplate.HTML {
	if len(keywords) == 0 {
		return t.MarkdownToHTML(s)
	}
	return t.Highlight(s, keywords)
}

// Highlight strips markup from s and wraps case-insensitive keyword matches
// in <mark>.
func (t *Template) Highlight(s string, keywords []string) stdtemplate.HTML {
	plain := html.UnescapeString(t.strict.Sanitize(s))
	re := keywordPattern(keywords)
	if re == nil {
		return stdtemplate.HTML(stdtemplate.HTMLEscapeString(plain))
	}
	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringIndex(plain, -1) {
		b.WriteString(stdtemplate.HTMLEscapeString(plain[last:m[0]]))
		b.WriteString("<mark>")
		b.WriteString(stdtemplate.HTMLEscapeString(plain[m[0]:m[1]]))
		b.WriteString("</mark>")
		last = m[1]
	}
	b.WriteString(stdtemplate.HTMLEscapeString(plain[last:]))
	return stdtemplate.HTML(b.String())
}

func keywordPattern(keywords []string) *regexp.Regexp {
	quoted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			quoted = append(quoted, regexp.QuoteMeta(k))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	// longest first so "golang" wins over "go"
	sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`)
}
