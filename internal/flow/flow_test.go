package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stemly/regbot/internal/domain"
	"github.com/stemly/regbot/internal/identity"
	"github.com/stemly/regbot/internal/session"
	"github.com/stemly/regbot/internal/texts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type sentMsg struct {
	ID     int
	ChatID int64
	Text   string
	Markup *tele.ReplyMarkup
}

type fakeTransport struct {
	nextID     int
	sent       []sentMsg
	edits      []sentMsg
	deleted    []int
	failDelete bool
	forwards   []int
	answers    []string
}

func (f *fakeTransport) Send(_ context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (int, error) {
	f.nextID++
	f.sent = append(f.sent, sentMsg{ID: f.nextID, ChatID: chatID, Text: text, Markup: markup})
	return f.nextID, nil
}

func (f *fakeTransport) Edit(_ context.Context, chatID int64, messageID int, text string, markup *tele.ReplyMarkup) error {
	f.edits = append(f.edits, sentMsg{ID: messageID, ChatID: chatID, Text: text, Markup: markup})
	return nil
}

func (f *fakeTransport) EditMarkup(_ context.Context, chatID int64, messageID int, markup *tele.ReplyMarkup) error {
	f.edits = append(f.edits, sentMsg{ID: messageID, ChatID: chatID, Markup: markup})
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, _ int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	if f.failDelete {
		return errors.New("message is too old")
	}
	return nil
}

func (f *fakeTransport) Answer(_ context.Context, callbackID, text string, _ bool) error {
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeTransport) Forward(_ context.Context, _, _ int64, messageID int) error {
	f.forwards = append(f.forwards, messageID)
	return nil
}

func (f *fakeTransport) lastSent() sentMsg {
	if len(f.sent) == 0 {
		return sentMsg{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) lastScreen() sentMsg {
	if len(f.edits) > 0 {
		return f.edits[len(f.edits)-1]
	}
	return f.lastSent()
}

type fakeSink struct {
	parents  []domain.ParentProfile
	children []domain.ChildProfile
	fail     bool
}

func (f *fakeSink) AddParent(_ context.Context, p domain.ParentProfile) error {
	if f.fail {
		return errors.New("sheet unavailable")
	}
	f.parents = append(f.parents, p)
	return nil
}

func (f *fakeSink) AddChild(_ context.Context, _ int64, c domain.ChildProfile) error {
	if f.fail {
		return errors.New("sheet unavailable")
	}
	f.children = append(f.children, c)
	return nil
}

type fakeIdentity struct {
	lookup      identity.LookupResult
	upsertErr   error
	upserted    []identity.Payload
	placeholder string
}

func (f *fakeIdentity) FindByPhone(_ context.Context, _ string) identity.LookupResult {
	return f.lookup
}

func (f *fakeIdentity) Upsert(_ context.Context, p identity.Payload) (*identity.Record, error) {
	f.upserted = append(f.upserted, p)
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return &identity.Record{User: identity.User{ID: "new-user"}}, nil
}

func (f *fakeIdentity) PlaceholderDomain() string {
	if f.placeholder == "" {
		return "school.local"
	}
	return f.placeholder
}

type fixture struct {
	ctrl     *Controller
	tp       *fakeTransport
	sink     *fakeSink
	identity *fakeIdentity
	sessions *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tbl, err := texts.Load()
	require.NoError(t, err)

	tp := &fakeTransport{}
	sink := &fakeSink{}
	id := &fakeIdentity{}
	sessions := session.NewManager()

	ctrl, err := New(Options{
		Sessions:       sessions,
		Texts:          tbl,
		Sink:           sink,
		Identity:       id,
		Transport:      tp,
		SupportGroupID: -100500,
	})
	require.NoError(t, err)

	return &fixture{ctrl: ctrl, tp: tp, sink: sink, identity: id, sessions: sessions}
}

const chatID = int64(777)

func textEv(text string) Event {
	return Event{ChatID: chatID, UserID: chatID, MessageID: 9000, Text: text}
}

func cbEv(key, payload string, messageID int) Event {
	return Event{ChatID: chatID, UserID: chatID, MessageID: messageID, Key: key, Payload: payload, CallbackID: "cb"}
}

// runParentCapture walks the fixture from /start to the parent
// confirmation screen.
func runParentCapture(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx, textEv("/start")))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyLanguage, "ru", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyRole, "parent", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyCreateProfile, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Anna")))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Ivanova")))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("+1234567890")))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Tashkent")))

	require.Equal(t, StateParentConfirming, f.sessions.StateOf(chatID))
}

func TestTableValidate(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.ctrl.table.Validate())

	broken := Table{
		StateParentFirstName: {},
	}
	assert.Error(t, broken.Validate(), "state without transitions is a wiring bug")

	nilHandler := Table{
		StateParentFirstName: {onText: nil},
	}
	assert.Error(t, nilHandler.Validate())

	idleWired := Table{
		session.StateIdle: {onText: func(context.Context, Event) error { return nil }},
	}
	assert.Error(t, idleWired.Validate())
}

func TestCallbackKeysCoverFlows(t *testing.T) {
	f := newFixture(t)
	keys := f.ctrl.CallbackKeys()
	for _, want := range []string{KeyLanguage, KeyRole, KeyConfirmProfile, KeyEditField, KeyCalendar, KeyInterest, KeyConsentYes} {
		assert.Contains(t, keys, want)
	}
	assert.NotContains(t, keys, string(onText))
}

func TestHistoryFlushEmptiesPendingDespiteFailures(t *testing.T) {
	f := newFixture(t)
	f.tp.failDelete = true
	ctx := context.Background()

	f.sessions.Update(chatID, func(s *session.Session) {
		s.Track(1, 2, 3)
	})

	f.ctrl.flushHistory(ctx, chatID)

	assert.Empty(t, f.sessions.Get(chatID).Pending, "pending cleared even when every delete fails")
	assert.Equal(t, []int{3, 2, 1}, f.tp.deleted, "deletes run most-recent-first")
}

func TestParentConfirmationRendersAllFields(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)

	text := f.tp.lastSent().Text
	for _, want := range []string{"Anna", "Ivanova", "+1234567890", "Tashkent"} {
		assert.Contains(t, text, want)
	}
}

func TestConfirmWithFailingUpsertStillAdvances(t *testing.T) {
	f := newFixture(t)
	f.identity.upsertErr = errors.New("identity api down")
	runParentCapture(t, f)

	confID := f.tp.lastSent().ID
	require.NoError(t, f.ctrl.Dispatch(context.Background(), cbEv(KeyConfirmProfile, "", confID)))

	assert.Equal(t, StateAddingChildDecision, f.sessions.StateOf(chatID))
	require.Len(t, f.sink.parents, 1)
	assert.Equal(t, "Anna", f.sink.parents[0].FirstName)

	text := f.tp.lastSent().Text
	assert.Contains(t, text, f.ctrl.texts.Get("ru", "add-child-prompt"))
}

func TestEditThenConfirmChangesOnlyEditedField(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	ctx := context.Background()

	confID := f.tp.lastSent().ID
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyEditProfile, "", confID)))
	require.Equal(t, StateParentEditing, f.sessions.StateOf(chatID))

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyEditField, FieldPhone, confID)))
	require.Equal(t, StateParentPhone, f.sessions.StateOf(chatID))
	assert.True(t, f.sessions.Get(chatID).Editing)

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("+9999")))

	assert.Equal(t, StateParentConfirming, f.sessions.StateOf(chatID), "edited field jumps straight back")
	assert.False(t, f.sessions.Get(chatID).Editing)

	d := f.sessions.Get(chatID).Parent
	assert.Equal(t, "+9999", d.Phone)
	assert.Equal(t, "Anna", d.FirstName)
	assert.Equal(t, "Ivanova", d.LastName)
	assert.Equal(t, "Tashkent", d.City)

	text := f.tp.lastSent().Text
	assert.Contains(t, text, "+9999")
	assert.NotContains(t, text, "+1234567890")
}

func TestUnknownEditFieldAbortsWithoutStateChange(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	ctx := context.Background()

	confID := f.tp.lastSent().ID
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyEditProfile, "", confID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyEditField, "shoe_size", confID)))

	assert.Equal(t, StateParentEditing, f.sessions.StateOf(chatID), "state untouched")
	assert.False(t, f.sessions.Get(chatID).Editing)
	require.NotEmpty(t, f.tp.answers)
	assert.NotEmpty(t, f.tp.answers[len(f.tp.answers)-1], "user gets an alert")
}

func confirmParentAndReachDecision(t *testing.T, f *fixture) {
	t.Helper()
	require.NoError(t, f.ctrl.Dispatch(context.Background(), cbEv(KeyConfirmProfile, "", f.tp.lastSent().ID)))
	require.Equal(t, StateAddingChildDecision, f.sessions.StateOf(chatID))
}

func TestFoundChildWithoutNameRendersWeakVariant(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	confirmParentAndReachDecision(t, f)
	ctx := context.Background()

	f.identity.lookup = identity.LookupResult{
		Outcome: identity.Found,
		Record:  &identity.Record{User: identity.User{ID: "u-77"}},
	}

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyAddChild, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyYes, "", f.tp.lastSent().ID)))
	require.Equal(t, StateChildLookupPhone, f.sessions.StateOf(chatID))

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("+998905556677")))

	require.Equal(t, StateConfirmingFoundChild, f.sessions.StateOf(chatID))
	want := f.ctrl.texts.Render("ru", "child-found-no-name", map[string]string{"phone": "+998905556677"})
	assert.Equal(t, want, f.tp.lastSent().Text, "weak variant, not the named confirmation")
}

func TestFoundChildWithNameRendersNamedVariant(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	confirmParentAndReachDecision(t, f)
	ctx := context.Background()

	f.identity.lookup = identity.LookupResult{
		Outcome: identity.Found,
		Record: &identity.Record{
			User:    identity.User{ID: "u-42", Phone: "+998905556677"},
			Profile: &identity.Profile{FirstName: "Timur", LastName: "Karimov"},
		},
	}

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyAddChild, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyYes, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("998905556677")))

	assert.Contains(t, f.tp.lastSent().Text, "Timur")

	// Confirming stores the id but still re-enters name capture.
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyFoundChildYes, "", f.tp.lastSent().ID)))
	assert.Equal(t, StateChildFirstName, f.sessions.StateOf(chatID))
	assert.Equal(t, "u-42", f.sessions.Get(chatID).Child.ExodeUserID)
}

// runChildCapture walks from the add-child decision through the linear
// capture to the child confirmation screen, entering DOB manually.
func runChildCapture(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyAddChild, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyNo, "", f.tp.lastSent().ID)))
	require.Equal(t, StateChildFirstName, f.sessions.StateOf(chatID))

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Malika")))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Karimova")))
	require.Equal(t, StateChildDOB, f.sessions.StateOf(chatID))

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyManualDOB, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("17.05.2014")))
	require.Equal(t, StateChildClass, f.sessions.StateOf(chatID))

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("5")))
	require.Equal(t, StateChildCity, f.sessions.StateOf(chatID))

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyCity, "Ташкент", f.tp.lastSent().ID)))
	require.Equal(t, StateChildInterests, f.sessions.StateOf(chatID))

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyInterest, "math", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyInterestsDone, "", f.tp.lastSent().ID)))
	require.Equal(t, StateChildConfirming, f.sessions.StateOf(chatID))
}

func TestChildValidationReprompts(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	confirmParentAndReachDecision(t, f)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyAddChild, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyNo, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Malika")))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Karimova")))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyManualDOB, "", f.tp.lastSent().ID)))

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("31.04.2020")))
	assert.Equal(t, StateChildDOBManual, f.sessions.StateOf(chatID), "bad date re-prompts in place")
	assert.Empty(t, f.sessions.Get(chatID).Child.DOB)

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("29.02.2024")))
	require.Equal(t, StateChildClass, f.sessions.StateOf(chatID))

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("12")))
	assert.Equal(t, StateChildClass, f.sessions.StateOf(chatID), "out-of-range grade re-prompts")
	assert.Zero(t, f.sessions.Get(chatID).Child.Grade)

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("11")))
	assert.Equal(t, StateChildCity, f.sessions.StateOf(chatID))
}

func TestUnlinkedChildGoesThroughConsent(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	confirmParentAndReachDecision(t, f)
	runChildCapture(t, f)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyConfirmChild, "", f.tp.lastSent().ID)))
	require.Equal(t, StateChildConsent, f.sessions.StateOf(chatID))
	require.Len(t, f.sink.children, 1)
	assert.Equal(t, "Malika", f.sink.children[0].FirstName)
	assert.Equal(t, 5, f.sink.children[0].Grade)

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyConsentYes, "", f.tp.lastSent().ID)))

	assert.Equal(t, StateAddingChildDecision, f.sessions.StateOf(chatID))
	assert.Nil(t, f.sessions.Get(chatID).Child, "draft reset for the next iteration")

	// Parent upsert plus child upsert.
	require.Len(t, f.identity.upserted, 2)
	child := f.identity.upserted[1]
	assert.Equal(t, domain.RoleStudent, child.Profile.Role)
	assert.Equal(t, "2014-05-17", child.Profile.BDate)
	assert.Equal(t, "+1234567890", child.Phone, "parent phone backs the child account")

	assert.Contains(t, f.tp.lastSent().Text, f.ctrl.texts.Get("ru", "child-profile-created-success"))
}

func TestConsentNoReportsLocalOutcome(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	confirmParentAndReachDecision(t, f)
	runChildCapture(t, f)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyConfirmChild, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyConsentNo, "", f.tp.lastSent().ID)))

	assert.Equal(t, StateAddingChildDecision, f.sessions.StateOf(chatID))
	assert.Len(t, f.identity.upserted, 1, "no child upsert without consent")
	assert.Contains(t, f.tp.lastSent().Text, f.ctrl.texts.Get("ru", "child-profile-created-locally"))
}

func TestLinkedChildSkipsConsent(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	confirmParentAndReachDecision(t, f)
	ctx := context.Background()

	f.identity.lookup = identity.LookupResult{
		Outcome: identity.Found,
		Record:  &identity.Record{User: identity.User{ID: "u-42"}},
	}
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyAddChild, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyYes, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("+998905556677")))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyFoundChildYes, "", f.tp.lastSent().ID)))

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Malika")))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Karimova")))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyManualDOB, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("17.05.2014")))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("5")))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyManualCity, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Бухара")))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyInterestsDone, "", f.tp.lastSent().ID)))
	require.Equal(t, StateChildConfirming, f.sessions.StateOf(chatID))

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyConfirmChild, "", f.tp.lastSent().ID)))

	assert.Equal(t, StateAddingChildDecision, f.sessions.StateOf(chatID), "linked child bypasses consent")
	assert.Nil(t, f.sessions.Get(chatID).Child)
	require.Len(t, f.sink.children, 1)
	assert.Equal(t, "u-42", f.sink.children[0].ExodeUserID)
	assert.Len(t, f.identity.upserted, 1, "no second account for a linked child")
	assert.Contains(t, f.tp.lastSent().Text, f.ctrl.texts.Get("ru", "child-profile-linked-success"))
}

func TestCalendarPickerStoresDate(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	confirmParentAndReachDecision(t, f)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyAddChild, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyNo, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Malika")))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Karimova")))
	require.Equal(t, StateChildDOB, f.sessions.StateOf(chatID))

	msgID := f.tp.lastSent().ID
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyCalendar, "y|2014", msgID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyCalendar, "m|2014|5", msgID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyCalendar, "d|2014|5|7", msgID)))

	assert.Equal(t, "07.05.2014", f.sessions.Get(chatID).Child.DOB)
	assert.Equal(t, StateChildClass, f.sessions.StateOf(chatID))
}

func TestInterestToggleRedrawsMarkup(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	confirmParentAndReachDecision(t, f)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyAddChild, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyNo, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Malika")))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("Karimova")))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyManualDOB, "", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("17.05.2014")))
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("5")))
	msgID := f.tp.lastSent().ID
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyCity, "Ташкент", msgID)))

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyInterest, "math", msgID)))
	assert.Equal(t, []string{"math"}, f.sessions.Get(chatID).Child.Interests)
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyInterest, "math", msgID)))
	assert.Empty(t, f.sessions.Get(chatID).Child.Interests)
	assert.Equal(t, StateChildInterests, f.sessions.StateOf(chatID), "toggling never advances")
}

func TestSupportChatForwarding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.EnterSupport(ctx, textEv("/support")))
	require.Equal(t, StateSupportChat, f.sessions.StateOf(chatID))

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("my payment failed")))
	assert.Equal(t, []int{9000}, f.tp.forwards)
	assert.Contains(t, f.tp.lastSent().Text, f.ctrl.texts.Get("ru", "support-sent"))

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("/stop")))
	assert.Equal(t, session.StateIdle, f.sessions.StateOf(chatID))
}

func TestDispatchDropsUnmatchedEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Idle chat, random text: nothing happens.
	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("hello?")))
	assert.Empty(t, f.tp.sent)

	// Active state, wrong button: acknowledged and dropped.
	runParentCapture(t, f)
	before := f.sessions.StateOf(chatID)
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyConsentYes, "", f.tp.lastSent().ID)))
	assert.Equal(t, before, f.sessions.StateOf(chatID))
}

func TestPostponeLandsOnMainMenu(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx, textEv("/start")))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyLanguage, "uz", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyRole, "parent", f.tp.lastSent().ID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyPostpone, "", f.tp.lastSent().ID)))

	s := f.sessions.Get(chatID)
	assert.Equal(t, session.StateIdle, s.State)
	assert.NotZero(t, s.MenuMessageID)
	assert.Equal(t, f.ctrl.texts.Get("uz", "main-menu-welcome"), f.tp.lastSent().Text)
}

func TestStartInterruptsActiveFlow(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx, textEv("/start")))
	s := f.sessions.Get(chatID)
	assert.Equal(t, StateChoosingLanguage, s.State)
	assert.Nil(t, s.Parent, "hard reset drops drafts")
}

func TestParentSummaryFormatting(t *testing.T) {
	f := newFixture(t)
	text := f.ctrl.parentSummary("ru", &session.ParentDraft{
		FirstName: "Anna", LastName: "Ivanova", Phone: "+1", City: "X",
	})
	assert.False(t, strings.Contains(text, "{"), "no unexpanded placeholders: %s", text)
}

func TestChildSummaryAge(t *testing.T) {
	f := newFixture(t)
	d := &session.ChildDraft{
		FirstName: "Malika", LastName: "K", DOB: "17.05.2014",
		Grade: 5, City: "X", Interests: []string{"math", "chess"},
	}
	text := f.ctrl.childSummary("ru", d)
	assert.Contains(t, text, "17.05.2014")
	assert.Contains(t, text, f.ctrl.texts.InterestLabel("ru", "math"))
	assert.False(t, strings.Contains(text, "{"), "no unexpanded placeholders: %s", text)
	assert.NotContains(t, text, "()", "age is rendered")
}

func TestEditEmailRejectsMalformedInputThenAccepts(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	ctx := context.Background()

	confID := f.tp.lastSent().ID
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyEditProfile, "", confID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyEditField, FieldEmail, confID)))
	require.Equal(t, StateParentEmail, f.sessions.StateOf(chatID))
	assert.NotNil(t, f.tp.lastSent().Markup, "email prompt carries the skip button")

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("not-an-email")))

	assert.Equal(t, StateParentEmail, f.sessions.StateOf(chatID), "malformed input re-prompts in place")
	assert.Empty(t, f.sessions.Get(chatID).Parent.Email)
	assert.Equal(t, f.ctrl.texts.Get("ru", "email-input-error"), f.tp.lastSent().Text)

	require.NoError(t, f.ctrl.Dispatch(ctx, textEv("anna@example.com")))

	assert.Equal(t, StateParentConfirming, f.sessions.StateOf(chatID))
	assert.False(t, f.sessions.Get(chatID).Editing)
	assert.Equal(t, "anna@example.com", f.sessions.Get(chatID).Parent.Email)
}

func TestSkipEmailStoresSentinelAndUpsertOmitsIt(t *testing.T) {
	f := newFixture(t)
	runParentCapture(t, f)
	ctx := context.Background()

	confID := f.tp.lastSent().ID
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyEditProfile, "", confID)))
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyEditField, FieldEmail, confID)))

	promptID := f.tp.lastSent().ID
	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeySkipEmail, "", promptID)))

	assert.Equal(t, StateParentConfirming, f.sessions.StateOf(chatID))
	assert.Equal(t, domain.EmailSkipped, f.sessions.Get(chatID).Parent.Email)

	require.NoError(t, f.ctrl.Dispatch(ctx, cbEv(KeyConfirmProfile, "", f.tp.lastSent().ID)))
	require.NotEmpty(t, f.identity.upserted)
	assert.Empty(t, f.identity.upserted[0].Email, "skipped email never reaches the identity payload")
}
