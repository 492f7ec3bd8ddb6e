// Package templates holds the HTML fragments served to HTMX clients.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/nurserymap/internal/core"
)

// ErrorAlert renders a dismissable error banner.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<p class="alert-message">%s</p>`, templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, `<p class="alert-action">%s</p>`, templ.EscapeString(action))
		}
		fmt.Fprintf(&b, `<p class="alert-code">%s</p>`, templ.EscapeString(code))
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// outcomeLabels are the badge texts shown for each outcome.
var outcomeLabels = map[core.Outcome]string{
	core.OutcomeNoFilter:    "",
	core.OutcomeAgeMismatch: "対象外の年齢",
	core.OutcomeNoData:      "空き情報なし",
	core.OutcomeClosed:      "受入なし",
	core.OutcomeOpen:        "受入可",
}

// FacilityCard renders the details popup of one facility. slots lists the
// slot labels open on the selected weekday.
func FacilityCard(f *core.Facility, st core.Status, weekday string, slots []string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<article class="facility" data-no="%s" data-outcome="%s">`,
			templ.EscapeString(f.No), templ.EscapeString(string(st.Outcome)))
		fmt.Fprintf(&b, `<h2>%s</h2>`, templ.EscapeString(f.Name))
		if f.NameKana != "" {
			fmt.Fprintf(&b, `<p class="kana">%s</p>`, templ.EscapeString(f.NameKana))
		}
		if label := outcomeLabels[st.Outcome]; label != "" {
			fmt.Fprintf(&b, `<span class="badge badge-%s">%s</span>`,
				templ.EscapeString(string(st.Outcome)), templ.EscapeString(label))
		}

		b.WriteString(`<dl>`)
		writeField(&b, "種類", f.Type)
		writeField(&b, "所在地", f.Address)
		writeField(&b, "電話番号", f.Phone)
		writeField(&b, "利用できる歳児", f.AgesRaw)
		b.WriteString(`</dl>`)

		if weekday != "" && len(slots) > 0 {
			fmt.Fprintf(&b, `<h3>%s曜日の受入枠</h3><ul class="slots">`, templ.EscapeString(weekday))
			for _, s := range slots {
				fmt.Fprintf(&b, `<li>%s</li>`, templ.EscapeString(s))
			}
			b.WriteString(`</ul>`)
		}
		if f.Message != "" {
			fmt.Fprintf(&b, `<p class="message">%s</p>`, templ.EscapeString(f.Message))
		}
		if f.Notes != "" {
			fmt.Fprintf(&b, `<p class="notes">%s</p>`, templ.EscapeString(f.Notes))
		}
		b.WriteString(`</article>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, `<dt>%s</dt><dd>%s</dd>`, templ.EscapeString(label), templ.EscapeString(value))
}
