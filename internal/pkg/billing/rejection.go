package billing

import "strings"

// rejectionMessages maps MercadoPago status_detail codes for rejected card
// payments onto the Spanish copy shown to the teacher at checkout.
var rejectionMessages = map[string]string{
	"cc_rejected_bad_filled_card_number":   "Número de tarjeta incorrecto",
	"cc_rejected_bad_filled_date":          "Fecha de vencimiento incorrecta",
	"cc_rejected_bad_filled_security_code": "Código de seguridad incorrecto",
	"cc_rejected_bad_filled_other":         "Revisa los datos de tu tarjeta",
	"cc_rejected_insufficient_amount":      "Fondos insuficientes",
	"cc_rejected_high_risk":                "Pago rechazado por seguridad. Intenta con otra tarjeta",
	"cc_rejected_max_attempts":             "Demasiados intentos. Espera unos minutos",
	"cc_rejected_call_for_authorize":       "Tu banco requiere autorización. Llámalos e intenta de nuevo",
	"cc_rejected_card_disabled":            "Tarjeta deshabilitada. Contacta a tu banco",
	"cc_rejected_duplicated_payment":       "Ya realizaste un pago por este monto",
	"cc_rejected_blacklist":                "No pudimos procesar tu pago",
	"cc_rejected_other_reason":             "Tu tarjeta fue rechazada. Intenta con otra",
}

const defaultRejectionMessage = "No pudimos procesar tu pago. Intenta con otra tarjeta"

// RejectionMessage translates a rejected payment's status detail into a user
// facing Spanish message. Unknown details get a generic message rather than
// leaking processor codes to the UI.
func RejectionMessage(statusDetail string) string {
	if msg, ok := rejectionMessages[strings.TrimSpace(strings.ToLower(statusDetail))]; ok {
		return msg
	}
	return defaultRejectionMessage
}
