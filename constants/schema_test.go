package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	cases := map[string]SchemaName{
		"utility_bill":    UtilityBill,
		"Utility Bill":    UtilityBill,
		"product-invoice": ProductInvoice,
		"invoice":         ProductInvoice,
		"service":         ServiceInvoice,
	}
	for in, want := range cases {
		got, ok := Canonicalize(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := Canonicalize("receipt")
	assert.False(t, ok)
	assert.Equal(t, Generic, got)
}

func TestMapExtToFormat(t *testing.T) {
	assert.Equal(t, PDF, MapExtToFormat(".PDF"))
	assert.Equal(t, IMAGE, MapExtToFormat("heic"))
	assert.Equal(t, "", MapExtToFormat(".docx"))
	assert.True(t, StatusPassWithInference.Passed())
	assert.False(t, StatusSkip.Passed())
}
