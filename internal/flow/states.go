package flow

import "github.com/stemly/regbot/internal/session"

// Conversation states. Idle (the zero state) means no flow is active.
const (
	StateChoosingLanguage session.State = "choosing_language"
	StateChoosingRole     session.State = "choosing_role"

	StateParentConfirmingCreation session.State = "parent_confirming_creation"
	StateParentFirstName          session.State = "parent_entering_first_name"
	StateParentLastName           session.State = "parent_entering_last_name"
	StateParentPhone              session.State = "parent_entering_phone"
	StateParentCity               session.State = "parent_entering_city"
	StateParentEmail              session.State = "parent_entering_email"
	StateParentConfirming         session.State = "parent_confirming_profile"
	StateParentEditing            session.State = "parent_editing_profile"

	StateAddingChildDecision   session.State = "adding_child_decision"
	StateAskingChildRegistered session.State = "asking_child_registered"
	StateChildLookupPhone      session.State = "entering_child_phone"
	StateConfirmingFoundChild  session.State = "confirming_found_child"

	StateChildFirstName  session.State = "child_entering_first_name"
	StateChildLastName   session.State = "child_entering_last_name"
	StateChildDOB        session.State = "child_entering_dob"
	StateChildDOBManual  session.State = "child_entering_dob_manually"
	StateChildClass      session.State = "child_entering_class"
	StateChildCity       session.State = "child_entering_city"
	StateChildCityManual session.State = "child_entering_city_manually"
	StateChildInterests  session.State = "child_choosing_interests"
	StateChildConfirming session.State = "child_confirming"
	StateChildConsent    session.State = "child_confirming_account_creation"

	StateSupportChat session.State = "support_chat"
)

// Callback keys (telebot "unique" values). Variable parts travel in the
// callback payload, not the key.
const (
	KeyLanguage        = "lang"
	KeyRole            = "role"
	KeyCreateProfile   = "create_profile"
	KeyPostpone        = "postpone_creation"
	KeyConfirmProfile  = "confirm_profile"
	KeyEditProfile     = "edit_profile"
	KeyEditField       = "edit"
	KeyBackToConfirm   = "back_to_confirmation"
	KeyBackToPhone     = "back_to_phone_input"
	KeySkipEmail       = "skip_email"
	KeyBackToCity      = "back_to_city_input"
	KeyAddChild        = "add_child"
	KeyFinish          = "finish_registration"
	KeyBackToProfile   = "back_to_profile_confirmation"
	KeyYes             = "yes"
	KeyNo              = "no"
	KeyFoundChildYes   = "confirm_found_child_yes"
	KeyFoundChildNo    = "confirm_found_child_no"
	KeyCalendar        = "cal"
	KeyManualDOB       = "manual_dob_input"
	KeyCity            = "city"
	KeyManualCity      = "manual_city_input"
	KeyInterest        = "interest"
	KeyInterestsDone   = "interests_done"
	KeyBackToInterests = "back_to_interests"
	KeyConfirmChild    = "confirm_child"
	KeyConsentYes      = "consent_yes"
	KeyConsentNo       = "consent_no"
)

// Edit-menu field selectors carried in the edit callback payload.
const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldPhone     = "phone"
	FieldCity      = "city"
	FieldEmail     = "email"
)
