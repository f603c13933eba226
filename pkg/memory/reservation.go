package memory

import "github.com/dustin/go-humanize"

// Reservation is an RAII-style handle on memory reserved from a Tracker.
// Go has no destructors, so the caller must defer Release explicitly:
//
//	res, err := memory.Reserve(tracker, size)
//	if err != nil {
//	    return err
//	}
//	defer res.Release()
type Reservation struct {
	tracker *Tracker
	size    uint64
	valid   bool
}

// Reserve reserves size bytes from tracker, returning a Budget-category
// error (see budgetExceededError) if the reservation would exceed the global limit.
func Reserve(tracker *Tracker, size uint64) (*Reservation, error) {
	if !tracker.TryReserve(size) {
		return nil, budgetExceededError(size, tracker.Used(), tracker.Limit())
	}
	return &Reservation{tracker: tracker, size: size, valid: true}, nil
}

// Valid reports whether the reservation still holds memory.
func (r *Reservation) Valid() bool { return r.valid }

// Size returns the number of bytes this reservation holds.
func (r *Reservation) Size() uint64 { return r.size }

// Release gives the memory back to the tracker. It is safe to call more
// than once; only the first call has an effect.
func (r *Reservation) Release() {
	if !r.valid {
		return
	}
	r.tracker.Release(r.size)
	r.valid = false
}

func (r *Reservation) String() string {
	if !r.valid {
		return "reservation(released)"
	}
	return "reservation(" + humanize.Bytes(r.size) + ")"
}
