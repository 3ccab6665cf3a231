// Package decrypt provides the default ports.DamageDecryptor. Decrypting
// the wire damage field is explicitly delegated to an external
// collaborator; this is the boundary stub the rest
// of the engine dispatches through — a deployment with a real cipher swaps
// this package out behind the same interface.
package decrypt

import "github.com/raidtrack/engine/internal/ports"

// Passthrough treats RawDamage as already-decoded and never fails. It
// exists so raidtrackd runs standalone against captures that carry
// plaintext damage fields, and as the seam a real decryptor implementation
// plugs into.
type Passthrough struct{}

func New() *Passthrough { return &Passthrough{} }

func (*Passthrough) Start() error { return nil }

func (*Passthrough) Decrypt(event *ports.SkillDamageEvent) bool { return true }

func (*Passthrough) UpdateZone(channelID uint32) {}
