package pack

import (
	"bytes"
	"context"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestFormID(t *testing.T) {
	assert.Equal(t, "edd_purchase_42", FormID("", 42))
	assert.Equal(t, "custom", FormID("custom", 42))
}

func TestAllowanceLabels(t *testing.T) {
	assert.Equal(t, "Downloads Allowed", AllowanceLabel(""))
	assert.Equal(t, "Patterns Allowed", AllowanceLabel("patterns"))
	assert.Equal(t, "The number of downloads allowed each subscription period.", AllowanceDescription(""))
	assert.Equal(t, "The number of patterns allowed each subscription period.", AllowanceDescription("Patterns"))
}

func TestDownloadButton(t *testing.T) {
	html := render(t, DownloadButton(DownloadButtonData{ProductID: 42, Nonce: "abc123", Action: "/downloads/pack"}))

	assert.Contains(t, html, `id="edd_purchase_42"`)
	assert.Contains(t, html, `class="edd_download_purchase_form edd_purchase_42"`)
	assert.Contains(t, html, `action="/downloads/pack"`)
	assert.Contains(t, html, `name="rcp-edd-download-pack-request" value="42"`)
	assert.Contains(t, html, `name="rcp-edd-download-pack-nonce" value="abc123"`)
	assert.Contains(t, html, `value="Download"`)
}

func TestDownloadButton_EscapesFormID(t *testing.T) {
	html := render(t, DownloadButton(DownloadButtonData{ProductID: 1, FormID: `x"><script>`}))
	assert.NotContains(t, html, `x"><script>`)
}

func TestPurchaseForm(t *testing.T) {
	html := render(t, PurchaseForm(PurchaseFormData{ProductID: 7, FormID: "buy", Price: "$15.00", Action: "/cart"}))

	assert.Contains(t, html, `id="buy"`)
	assert.Contains(t, html, `name="download_id" value="7"`)
	assert.Contains(t, html, "Purchase $15.00")
	assert.NotContains(t, html, FieldPackNonce)
}

func TestAllowanceField(t *testing.T) {
	html := render(t, AllowanceField(AllowanceFieldData{LevelID: 3, Allowance: 5, Nonce: "n1", CSRFToken: "c1", Action: "/admin/levels/3/downloads"}))

	assert.Contains(t, html, "Downloads Allowed")
	assert.Contains(t, html, "The number of downloads allowed each subscription period.")
	assert.Contains(t, html, `name="rcp-edd-downloads-allowed" value="5"`)
	assert.Contains(t, html, `name="rcp_edd_downloads_allowed_nonce" value="n1"`)
	assert.Contains(t, html, `name="csrf_token" value="c1"`)

	fresh := render(t, AllowanceField(AllowanceFieldData{}))
	assert.Contains(t, fresh, `name="rcp-edd-downloads-allowed" value="0"`)
}

func TestForms_RejectUnsafeAction(t *testing.T) {
	for name, c := range map[string]templ.Component{
		"download":  DownloadButton(DownloadButtonData{ProductID: 1, Action: "javascript:alert(1)"}),
		"purchase":  PurchaseForm(PurchaseFormData{ProductID: 1, Action: "javascript:alert(1)"}),
		"allowance": AllowanceField(AllowanceFieldData{Action: "javascript:alert(1)"}),
	} {
		t.Run(name, func(t *testing.T) {
			html := render(t, c)
			assert.NotContains(t, html, "javascript:")
			assert.Contains(t, html, "<form ")
		})
	}
}

func TestAllowanceField_NegativeStoredValue(t *testing.T) {
	html := render(t, AllowanceField(AllowanceFieldData{Allowance: -4}))
	assert.Contains(t, html, `name="rcp-edd-downloads-allowed" value="4"`)
}
