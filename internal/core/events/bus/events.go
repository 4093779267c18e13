package bus

import "errors"

// Event types raised by the detector core.
const (
	// ImpactDetected carries an impact.Impact.
	ImpactDetected = "impact.detected"
	// ContactEngaged carries a contact.Hit for a new engagement.
	ContactEngaged = "contact.engaged"
	// ContactReleased carries a contact.Hit for the zone that was left.
	ContactReleased = "contact.released"
)

var ErrNilHandler = errors.New("bus: nil handler")
