package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectionMessageKnownCodes(t *testing.T) {
	assert.Equal(t, "Número de tarjeta incorrecto", RejectionMessage("cc_rejected_bad_filled_card_number"))
	assert.Equal(t, "Fondos insuficientes", RejectionMessage("cc_rejected_insufficient_amount"))
	assert.Equal(t, "Demasiados intentos. Espera unos minutos", RejectionMessage("cc_rejected_max_attempts"))
}

func TestRejectionMessageIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, "Fondos insuficientes", RejectionMessage("CC_REJECTED_INSUFFICIENT_AMOUNT"))
}

func TestRejectionMessageUnknownCode(t *testing.T) {
	assert.Equal(t, defaultRejectionMessage, RejectionMessage("cc_rejected_some_new_code"))
	assert.Equal(t, defaultRejectionMessage, RejectionMessage(""))
}
