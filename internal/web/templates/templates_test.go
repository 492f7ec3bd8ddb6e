package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/nurserymap/internal/core"
)

func TestErrorAlert_Escapes(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("<b>bad</b>", "retry", "SRC001").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<b>") {
		t.Errorf("message not escaped: %s", out)
	}
	for _, want := range []string{"&lt;b&gt;bad&lt;/b&gt;", "retry", "SRC001"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestFacilityCard(t *testing.T) {
	f := &core.Facility{No: "12", Name: "さくら保育園", Address: "中央区1-1", AgesRaw: "0歳～5歳"}
	st := core.Status{Selection: core.SelectionAgeAndWeekday, Outcome: core.OutcomeOpen}

	var buf bytes.Buffer
	if err := FacilityCard(f, st, "月", []string{"0歳児", "1歳児"}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`data-no="12"`, "さくら保育園", "受入可", "月曜日の受入枠", "<li>0歳児</li>", "<li>1歳児</li>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "電話番号") {
		t.Errorf("empty phone should be omitted: %s", out)
	}
}
