package flow

import (
	"context"
	"fmt"
	"sort"

	"github.com/stemly/regbot/internal/session"
)

// eventKey identifies one inbound event kind within a state: a
// callback unique, or onText for free-text/contact messages.
type eventKey string

const onText eventKey = "@text"

func eventKeyOf(ev Event) eventKey {
	if ev.IsCallback() {
		return eventKey(ev.Key)
	}
	return onText
}

// Handler processes one event in one state.
type Handler func(ctx context.Context, ev Event) error

// Table is the explicit transition table: (state, event) -> handler.
// All flow wiring lives here so it can be checked once at startup
// instead of failing silently mid-conversation.
type Table map[session.State]map[eventKey]Handler

// buildTable wires every state of the general, parent, child and
// support flows.
func (c *Controller) buildTable() Table {
	return Table{
		StateChoosingLanguage: {
			eventKey(KeyLanguage): c.onLanguageChosen,
		},
		StateChoosingRole: {
			eventKey(KeyRole): c.onRoleChosen,
		},

		StateParentConfirmingCreation: {
			eventKey(KeyCreateProfile): c.onCreateProfile,
			eventKey(KeyPostpone):      c.onPostponeCreation,
		},
		StateParentFirstName: {
			onText: c.onParentFirstName,
		},
		StateParentLastName: {
			onText: c.onParentLastName,
		},
		StateParentPhone: {
			onText: c.onParentPhone,
		},
		StateParentCity: {
			onText:                   c.onParentCity,
			eventKey(KeyBackToPhone): c.onBackToPhoneInput,
		},
		StateParentEmail: {
			onText:                 c.onParentEmail,
			eventKey(KeySkipEmail): c.onSkipEmail,
		},
		StateParentConfirming: {
			eventKey(KeyConfirmProfile): c.onConfirmParentProfile,
			eventKey(KeyEditProfile):    c.onEditParentProfile,
			eventKey(KeyBackToCity):     c.onBackToCityInput,
		},
		StateParentEditing: {
			eventKey(KeyEditField):     c.onEditFieldChosen,
			eventKey(KeyBackToConfirm): c.onBackToConfirmation,
		},

		StateAddingChildDecision: {
			eventKey(KeyAddChild):      c.onAddChild,
			eventKey(KeyFinish):        c.onFinishRegistration,
			eventKey(KeyBackToProfile): c.onBackToConfirmation,
		},
		StateAskingChildRegistered: {
			eventKey(KeyYes): c.onChildRegisteredYes,
			eventKey(KeyNo):  c.onChildRegisteredNo,
		},
		StateChildLookupPhone: {
			onText: c.onChildLookupPhone,
		},
		StateConfirmingFoundChild: {
			eventKey(KeyFoundChildYes): c.onFoundChildConfirmed,
			eventKey(KeyFoundChildNo):  c.onFoundChildRejected,
		},

		StateChildFirstName: {
			onText: c.onChildFirstName,
		},
		StateChildLastName: {
			onText: c.onChildLastName,
		},
		StateChildDOB: {
			eventKey(KeyCalendar):  c.onChildCalendar,
			eventKey(KeyManualDOB): c.onManualDOBRequested,
		},
		StateChildDOBManual: {
			onText: c.onChildDOBManual,
		},
		StateChildClass: {
			onText: c.onChildClass,
		},
		StateChildCity: {
			eventKey(KeyCity):       c.onChildCityPicked,
			eventKey(KeyManualCity): c.onManualCityRequested,
		},
		StateChildCityManual: {
			onText: c.onChildCityManual,
		},
		StateChildInterests: {
			eventKey(KeyInterest):      c.onInterestToggled,
			eventKey(KeyInterestsDone): c.onInterestsDone,
		},
		StateChildConfirming: {
			eventKey(KeyConfirmChild):    c.onConfirmChild,
			eventKey(KeyBackToInterests): c.onBackToInterests,
		},
		StateChildConsent: {
			eventKey(KeyConsentYes): c.onConsent,
			eventKey(KeyConsentNo):  c.onConsent,
		},

		StateSupportChat: {
			onText: c.onSupportMessage,
		},
	}
}

// Validate checks the wiring once at startup: every state entry must
// carry at least one transition and every handler must be non-nil.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("flow: empty transition table")
	}
	for st, handlers := range t {
		if st == session.StateIdle {
			return fmt.Errorf("flow: idle state must not appear in the table")
		}
		if len(handlers) == 0 {
			return fmt.Errorf("flow: state %q has no transitions", st)
		}
		for key, h := range handlers {
			if key == "" {
				return fmt.Errorf("flow: state %q has an empty event key", st)
			}
			if h == nil {
				return fmt.Errorf("flow: state %q event %q has no handler", st, key)
			}
		}
	}
	return nil
}

// CallbackKeys returns the sorted set of callback uniques the table
// reacts to.
func (t Table) CallbackKeys() []string {
	seen := make(map[string]struct{})
	for _, handlers := range t {
		for key := range handlers {
			if key == onText {
				continue
			}
			seen[string(key)] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
