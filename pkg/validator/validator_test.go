package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sendEmailPayload struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=255"`
	Body    string `json:"body" validate:"required"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(&sendEmailPayload{
		To:      "ceo@company.com",
		Subject: "Re: budget",
		Body:    "See attached.",
	})
	require.NoError(t, err)
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(&sendEmailPayload{To: "not-an-address", Subject: "x"})
	require.Error(t, err)

	ve, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, ve, 2)

	fields := []string{ve[0].Field, ve[1].Field}
	require.Contains(t, fields, "to")
	require.Contains(t, fields, "body")
	require.Contains(t, err.Error(), "failed on")
}
