package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/manana-app/manana/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendRecoveryMail sends the password recovery link
func SendRecoveryMail(to string, name string, recoveryURL string) error {
	subject := "Recupera tu contraseña de MAÑANA"
	body := fmt.Sprintf(
		"<p>Hola %s,</p>"+
			"<p>Recibimos una solicitud para restablecer tu contraseña. "+
			"Haz clic en el siguiente enlace para elegir una nueva:</p>"+
			"<p><a href=\"%s\">Restablecer contraseña</a></p>"+
			"<p>El enlace es válido por 24 horas. Si no solicitaste este cambio, ignora este correo.</p>"+
			"<p>— El equipo de MAÑANA</p>",
		name, recoveryURL,
	)
	return SendMail(to, subject, body)
}
