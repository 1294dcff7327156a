package wallet

import (
	"context"
	"fmt"
)

// SwitchState is a step of the network switch handshake.
type SwitchState int

const (
	SwitchUnknown SwitchState = iota
	SwitchRequesting
	SwitchNeedsRegistration
	SwitchRequestingRegistration
	SwitchedOK
	SwitchFailed
	SwitchRegistrationFailed
)

func (s SwitchState) String() string {
	switch s {
	case SwitchUnknown:
		return "unknown"
	case SwitchRequesting:
		return "requesting_switch"
	case SwitchNeedsRegistration:
		return "needs_registration"
	case SwitchRequestingRegistration:
		return "requesting_registration"
	case SwitchedOK:
		return "switched_ok"
	case SwitchFailed:
		return "switch_failed"
	case SwitchRegistrationFailed:
		return "registration_failed"
	default:
		return fmt.Sprintf("switch_state(%d)", int(s))
	}
}

// Terminal reports whether the handshake has finished.
func (s SwitchState) Terminal() bool {
	return s == SwitchedOK || s == SwitchFailed || s == SwitchRegistrationFailed
}

// SwitchToExpectedNetwork asks the wallet to activate the target network,
// registering it first if the wallet does not know it. Failures are reported
// as notices and never retried.
func (s *Session) SwitchToExpectedNetwork(ctx context.Context) (bool, error) {
	err := s.switchNetwork(ctx)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.snap.ChainID = s.network.ChainID
	s.mu.Unlock()
	s.publish(nil)
	return true, nil
}

func (s *Session) switchNetwork(ctx context.Context) error {
	const op = "switch network"
	p, _ := s.ensureProvider(ctx)
	if p == nil {
		err := &Error{Kind: KindProviderUnavailable, Op: op}
		s.notify(NoticeError, "No wallet provider detected.", err)
		return err
	}

	state := SwitchUnknown
	var cause error
	for !state.Terminal() {
		next, err := s.stepSwitch(ctx, p, state)
		if err != nil {
			cause = err
		}
		s.log.Debug("network switch", "from", state, "to", next)
		state = next
	}

	switch state {
	case SwitchFailed:
		err := &Error{Kind: KindNetworkSwitchFailed, Op: op, Err: cause}
		s.notify(NoticeError, fmt.Sprintf("Failed to switch to %s", s.network.Name), err)
		return err
	case SwitchRegistrationFailed:
		err := &Error{Kind: KindRegistrationFailed, Op: op, Err: cause}
		s.notify(NoticeError, fmt.Sprintf("Failed to add %s to the wallet", s.network.Name), err)
		return err
	}
	return nil
}

// stepSwitch performs the provider call for one non-terminal state.
func (s *Session) stepSwitch(ctx context.Context, p Provider, state SwitchState) (SwitchState, error) {
	switch state {
	case SwitchUnknown:
		cctx, cancel := s.callCtx(ctx)
		defer cancel()
		if id, err := p.ChainID(cctx); err == nil && id == s.network.ChainID {
			return SwitchedOK, nil
		}
		return SwitchRequesting, nil

	case SwitchRequesting:
		cctx, cancel := s.callCtx(ctx)
		defer cancel()
		err := p.SwitchChain(cctx, s.network.ChainID)
		switch {
		case err == nil:
			return SwitchedOK, nil
		case ErrorCode(err) == CodeUnrecognizedChain:
			return SwitchNeedsRegistration, nil
		default:
			return SwitchFailed, err
		}

	case SwitchNeedsRegistration:
		return SwitchRequestingRegistration, nil

	case SwitchRequestingRegistration:
		cctx, cancel := s.callCtx(ctx)
		defer cancel()
		if err := p.AddChain(cctx, s.network); err != nil {
			return SwitchRegistrationFailed, err
		}
		return SwitchedOK, nil
	}
	return state, nil
}
