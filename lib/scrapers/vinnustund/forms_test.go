package vinnustund

import (
	"bytes"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T, page []byte) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestExtractHiddenFields(t *testing.T) {
	doc := parseFixture(t, timesheetFixture)

	fields := ExtractHiddenFields(doc, timesheetFormName)
	diff := cmp.Diff(map[string]string{
		"sj":      "true",
		"showBak": "true",
		"org.apache.struts.taglib.html.TOKEN": "f00df00df00d",
		"radad":                               "dags",
	}, fields)
	if diff != "" {
		t.Fatal(diff)
	}

	// visible inputs like the date range fields must not leak in
	require.NotContains(t, fields, "timabilFra")
	require.NotContains(t, fields, "timabilTil")
}

func TestExtractHiddenFieldsMissingForm(t *testing.T) {
	doc := parseFixture(t, loginFixture)
	require.Empty(t, ExtractHiddenFields(doc, timesheetFormName))
}

func TestExtractLoginForm(t *testing.T) {
	doc := parseFixture(t, loginFixture)

	fields := ExtractLoginForm(doc)
	diff := cmp.Diff(map[string]string{
		"org.apache.struts.taglib.html.TOKEN": "abc123token",
		"vstoken":                             "vs-9f8e7d",
		"bgid":                                "97",
	}, fields)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestExtractLoginFormNotPresent(t *testing.T) {
	doc := parseFixture(t, noTableFixture)
	require.Empty(t, ExtractLoginForm(doc))
}
