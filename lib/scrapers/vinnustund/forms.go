package vinnustund

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// timesheetFormName is the form wrapping the shift table; its hidden
// fields must be echoed back when submitting a date range.
const timesheetFormName = "detail_form"

func hiddenInputs(form *goquery.Selection) map[string]string {
	fields := map[string]string{}
	form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})
	return fields
}

// ExtractHiddenFields returns every hidden input's name/value pair from
// the named form. The remote rejects submissions missing its generated
// anti-forgery and view-state fields, so the full set is carried over
// verbatim. A missing form yields an empty map; the subsequent POST then
// fails at the HTTP layer, which is a distinguishable failure mode.
func ExtractHiddenFields(doc *goquery.Document, formName string) map[string]string {
	form := doc.Find(fmt.Sprintf("form[name=%s]", formName)).First()
	if form.Length() == 0 {
		return map[string]string{}
	}
	return hiddenInputs(form)
}

// ExtractLoginForm finds the form carrying the username/password inputs
// and returns its hidden fields. The login page does not use a stable
// form name, so the credential inputs are the marker.
func ExtractLoginForm(doc *goquery.Document) map[string]string {
	form := doc.Find("form").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return f.Find("input[name=username]").Length() > 0 ||
			f.Find("input[name=password]").Length() > 0
	}).First()
	if form.Length() == 0 {
		return map[string]string{}
	}
	return hiddenInputs(form)
}
