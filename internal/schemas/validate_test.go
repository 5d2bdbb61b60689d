package schemas

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportSchema_IsValidJSON(t *testing.T) {
	var v map[string]any
	require.NoError(t, json.Unmarshal(ImportSchema(), &v))
	assert.Contains(t, v, "oneOf")
}

func TestValidateImport(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "bare array",
			doc:  `[{"company":"Acme","position":"Dev","dateApplied":"2026-03-01","type":"Remote"}]`,
		},
		{
			name: "export envelope with goals",
			doc: `{"version":"1","applications":[{"company":"Acme","position":"Dev","dateApplied":"2026-03-01","type":"Hybrid","status":"Offer"}],
				"goals":{"weeklyGoal":5,"monthlyGoal":20,"totalGoal":100}}`,
		},
		{
			name:    "missing company",
			doc:     `[{"position":"Dev","dateApplied":"2026-03-01","type":"Remote"}]`,
			wantErr: true,
		},
		{
			name:    "unknown employment type",
			doc:     `[{"company":"Acme","position":"Dev","dateApplied":"2026-03-01","type":"Freelance"}]`,
			wantErr: true,
		},
		{
			name:    "goal out of range",
			doc:     `{"applications":[],"goals":{"weeklyGoal":51}}`,
			wantErr: true,
		},
		{
			name:    "oversize attachment",
			doc:     `[{"company":"A","position":"B","dateApplied":"2026-03-01","type":"Remote","attachments":[{"name":"cv.pdf","type":"application/pdf","size":20000000,"data":""}]}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImport([]byte(tt.doc))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "error should be ValidationError type")
			assert.NotEmpty(t, ve.Errors)
		})
	}
}

func TestValidateImport_Malformed(t *testing.T) {
	err := ValidateImport([]byte(`{not json`))
	require.Error(t, err)
	var le *SchemaLoadError
	assert.True(t, errors.As(err, &le))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name":"x"}`))

	err := ValidateJSONString(schema, `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
