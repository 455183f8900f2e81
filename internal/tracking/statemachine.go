package tracking

import (
	"fmt"

	"laundry-tracking-backend/internal/model"
)

// sequences defines the single legal status path per service type. Terminal
// state is COMPLETED for all of them.
var sequences = map[model.ServiceType][]model.LoadStatus{
	model.ServiceWash: {
		model.StatusUnwashed,
		model.StatusWashing,
		model.StatusWashed,
		model.StatusCompleted,
	},
	model.ServiceDry: {
		model.StatusUnwashed,
		model.StatusDrying,
		model.StatusDried,
		model.StatusFolding,
		model.StatusCompleted,
	},
	model.ServiceWashAndDry: {
		model.StatusUnwashed,
		model.StatusWashing,
		model.StatusWashed,
		model.StatusDrying,
		model.StatusDried,
		model.StatusFolding,
		model.StatusCompleted,
	},
}

// Sequence returns the legal status path for a service type, in order.
func Sequence(service model.ServiceType) []model.LoadStatus {
	return sequences[service]
}

// nextInSequence returns the status following the current one on the service's
// path, or an ErrInvalidTransition if the status is terminal or not on the
// path at all.
func nextInSequence(status model.LoadStatus, service model.ServiceType) (model.LoadStatus, error) {
	seq, ok := sequences[service]
	if !ok {
		return "", fmt.Errorf("%w: unknown service type %q", ErrInvalidTransition, service)
	}
	for i, s := range seq {
		if s != status {
			continue
		}
		if i == len(seq)-1 {
			return "", fmt.Errorf("%w: load is already %s", ErrInvalidTransition, status)
		}
		return seq[i+1], nil
	}
	return "", fmt.Errorf("%w: status %q is not part of service %s", ErrInvalidTransition, status, service)
}

// RequiredMachineType reports which machine type the load must hold in the
// given status, or false when the status needs no machine. Wash phases need a
// WASHER through UNWASHED/WASHING; dry phases need a DRYER through
// WASHED/DRYING (or UNWASHED/DRYING for dry-only). Nothing is needed from
// folding onwards.
func RequiredMachineType(status model.LoadStatus, service model.ServiceType) (model.MachineType, bool) {
	switch service {
	case model.ServiceWash:
		if status == model.StatusUnwashed || status == model.StatusWashing {
			return model.MachineWasher, true
		}
	case model.ServiceDry:
		if status == model.StatusUnwashed || status == model.StatusDrying {
			return model.MachineDryer, true
		}
	case model.ServiceWashAndDry:
		switch status {
		case model.StatusUnwashed, model.StatusWashing:
			return model.MachineWasher, true
		case model.StatusWashed, model.StatusDrying:
			return model.MachineDryer, true
		}
	}
	return "", false
}

// NextOnStart resolves the startAction event: kicking off a washer or dryer
// run. Only UNWASHED and WASHED (wash-and-dry) can start a run.
func NextOnStart(status model.LoadStatus, service model.ServiceType) (model.LoadStatus, error) {
	switch {
	case status == model.StatusUnwashed && service == model.ServiceDry:
		return model.StatusDrying, nil
	case status == model.StatusUnwashed:
		return model.StatusWashing, nil
	case status == model.StatusWashed && service == model.ServiceWashAndDry:
		return model.StatusDrying, nil
	}
	return "", fmt.Errorf("%w: cannot start a run from %s for service %s", ErrInvalidTransition, status, service)
}

// NextOnAdvance resolves the advanceStatus event and reports whether the
// transition is the single release point for the load's machine. WASHING and
// DRYING advance only once their timer has elapsed; the caller enforces that
// gate because it owns the clock.
func NextOnAdvance(status model.LoadStatus, service model.ServiceType) (next model.LoadStatus, release bool, err error) {
	switch status {
	case model.StatusWashing, model.StatusDrying, model.StatusFolding:
		next, err = nextInSequence(status, service)
		return next, false, err
	case model.StatusWashed:
		// For wash-and-dry the next event from WASHED is a dryer start, not
		// an advance.
		if service != model.ServiceWash {
			return "", false, fmt.Errorf("%w: WASHED advances by starting the dryer for service %s", ErrInvalidTransition, service)
		}
		return model.StatusCompleted, true, nil
	case model.StatusDried:
		return model.StatusFolding, true, nil
	}
	return "", false, fmt.Errorf("%w: cannot advance from %s", ErrInvalidTransition, status)
}

// NextOnRedo resolves the startDryingAgain event. Only a DRIED load can be
// sent back through the dryer.
func NextOnRedo(status model.LoadStatus, service model.ServiceType) (model.LoadStatus, error) {
	if status != model.StatusDried {
		return "", fmt.Errorf("%w: can only redo drying from DRIED, load is %s", ErrInvalidTransition, status)
	}
	if service == model.ServiceWash {
		return "", fmt.Errorf("%w: service %s has no drying stage", ErrInvalidTransition, service)
	}
	return model.StatusDrying, nil
}
