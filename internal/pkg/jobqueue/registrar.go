package jobqueue

import (
	"github.com/manana-app/manana/internal/pkg/entitlements"
)

// Registrar adapts the queue to the reconciler's registration hook
type Registrar struct {
	queue *Queue
}

func NewRegistrar(queue *Queue) *Registrar {
	return &Registrar{queue: queue}
}

// EnqueueRegistration queues the creation of a backing record for an identity
// that signed in before one existed
func (r *Registrar) EnqueueRegistration(ident entitlements.Identity, deviceGenerations int) error {
	_, err := r.queue.EnqueueRegisterUserJob(ident.PublicID, ident.Email, ident.Name, deviceGenerations)
	return err
}
