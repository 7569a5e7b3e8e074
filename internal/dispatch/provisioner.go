package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrUnitActive is returned by a provisioner when a unit with the
// requested name is already running. The caller must treat it like any
// other provisioning failure and leave the lease alone; the running
// unit will settle the message's fate.
var ErrUnitActive = errors.New("unit already active")

// Provisioner starts one ephemeral execution unit for one leased
// message and blocks until the unit finishes. A nil return means the
// unit reported success and the message may be deleted; any error
// means the lease must be left to expire.
//
// Unit names are deterministic per (message, receipt), so a duplicate
// provisioning attempt for the same lease hits the same name and
// implementations can refuse it instead of double-executing.
type Provisioner interface {
	Provision(ctx context.Context, unitName string, taskData string) error
}

// UnitName derives the deterministic unit name for a leased message.
// The receipt acts as a freshness token: the same message redelivered
// under a new lease gets a new name, while a duplicate attempt under
// the same lease collides.
func UnitName(taskData, receipt string) string {
	sum := sha256.Sum256([]byte(taskData + receipt))
	return fmt.Sprintf("unit-%s", hex.EncodeToString(sum[:])[:16])
}
