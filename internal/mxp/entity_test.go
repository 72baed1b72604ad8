package mxp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEngine_EntityResolutionGrid(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	testCases := []struct {
		name string
		ref  string
		want string
		ok   bool
	}{
		{"less than", "lt", "<", true},
		{"greater than", "gt", ">", true},
		{"ampersand", "amp", "&", true},
		{"double quote", "quot", `"`, true},
		{"apostrophe", "apos", "'", true},
		{"non-breaking space", "nbsp", " ", true},
		{"copyright", "copy", "©", true},
		{"euro", "euro", "€", true},
		{"one half", "frac12", "½", true},
		{"hearts", "hearts", "♥", true},
		{"right arrow", "rarr", "→", true},
		{"decimal", "#65", "A", true},
		{"hex lowercase marker", "#x41", "A", true},
		{"hex uppercase marker", "#X41", "A", true},
		{"tab allowed", "#9", "\t", true},
		{"newline allowed", "#10", "\n", true},
		{"carriage return allowed", "#13", "\r", true},
		{"null rejected", "#0", "", false},
		{"bell rejected", "#7", "", false},
		{"escape rejected", "#27", "", false},
		{"top of unicode", "#x10FFFF", "\U0010FFFF", true},
		{"beyond unicode", "#1114112", "", false},
		{"hex junk", "#x41g", "", false},
		{"bare hash", "#", "", false},
		{"bare hex marker", "#x", "", false},
		{"unknown name", "wibble", "", false},
		{"built-ins are case-sensitive", "LT", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := e.Entity(tc.ref)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEngine_CollectedEntityCountsAndFallsBack(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	require.Equal(t, "<", e.CollectedEntity("lt"))
	require.Equal(t, 1, e.Stats().Entities)
	require.Equal(t, 0, e.Stats().Errors)

	// Unknown references display as written so nothing silently vanishes.
	require.Equal(t, "&xyzzy;", e.CollectedEntity("xyzzy"))
	require.Equal(t, 1, e.Stats().Entities)
	require.Equal(t, 1, e.Stats().Errors)
}

func TestEngine_DefineEntity(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("!ENTITY hp 100")
	got, ok := e.Entity("hp")
	require.True(t, ok)
	require.Equal(t, "100", got)

	e.CollectedElement("!ENTITY motto 'live and learn'")
	got, _ = e.Entity("motto")
	require.Equal(t, "live and learn", got)

	// Names store lower-cased; references stay case-sensitive.
	e.CollectedElement("!ENTITY Mixed yes")
	_, ok = e.Entity("Mixed")
	require.False(t, ok)
	got, _ = e.Entity("mixed")
	require.Equal(t, "yes", got)

	e.CollectedElement("!ENTITY hp DELETE")
	_, ok = e.Entity("hp")
	require.False(t, ok)
}

func TestEngine_DefineEntityRejectsBuiltins(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("!ENTITY lt bogus")
	require.Equal(t, 1, e.Stats().Errors)

	got, ok := e.Entity("lt")
	require.True(t, ok)
	require.Equal(t, "<", got)
}

func TestEngine_DefinitionTimeExpansion(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("!ENTITY base red")
	e.CollectedElement("!ENTITY derived '&base;-ish'")

	got, _ := e.Entity("derived")
	require.Equal(t, "red-ish", got)

	// Redefining base later does not flow through derived.
	e.CollectedElement("!ENTITY base blue")
	got, _ = e.Entity("derived")
	require.Equal(t, "red-ish", got)
}

func TestEngine_DefineEntityMissingValue(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("!ENTITY lonely")
	require.Equal(t, 1, e.Stats().Errors)

	e.CollectedElement("!ENTITY broken 'no closing quote")
	require.Equal(t, 2, e.Stats().Errors)
}

func TestEngine_EntityListAddRemove(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("!ENTITY exits north")
	e.CollectedElement("!ENTITY exits south ADD")
	e.CollectedElement("!ENTITY exits east ADD")
	got, _ := e.Entity("exits")
	require.Equal(t, "north|south|east", got)

	e.CollectedElement("!ENTITY exits south REMOVE")
	got, _ = e.Entity("exits")
	require.Equal(t, "north|east", got)

	e.CollectedElement("!ENTITY exits north REMOVE")
	e.CollectedElement("!ENTITY exits east REMOVE")
	_, ok := e.Entity("exits")
	require.False(t, ok)
}

func TestEngine_PrivateEntityHiddenFromListing(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	e.CollectedElement("!ENTITY visible yes")
	e.CollectedElement("!ENTITY secret shh PRIVATE")

	got, ok := e.Entity("secret")
	require.True(t, ok)
	require.Equal(t, "shh", got)

	listed := e.Entities()
	require.Contains(t, listed, "visible")
	require.NotContains(t, listed, "secret")
}

func TestEngine_PublishFiresVariableHook(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	var gotName, gotValue string
	e.OnVariable = func(name, value string) { gotName, gotValue = name, value }

	e.CollectedElement("!ENTITY hp 100 PUBLISH")
	require.Equal(t, "hp", gotName)
	require.Equal(t, "100", gotValue)
}

func TestEngine_VarTagSetsEntityAndHook(t *testing.T) {
	e, _, _ := newTestEngine(Config{})

	var gotName, gotValue string
	e.OnVariable = func(name, value string) { gotName, gotValue = name, value }

	e.CollectedElement("var name=hp value=99")
	require.Equal(t, "hp", gotName)
	require.Equal(t, "99", gotValue)
	got, _ := e.Entity("hp")
	require.Equal(t, "99", got)

	// The name may also arrive positionally.
	e.CollectedElement("var mana value=50")
	got, _ = e.Entity("mana")
	require.Equal(t, "50", got)

	// Built-in entity names stay off limits.
	e.CollectedElement("var name=amp value=x")
	require.Equal(t, 1, e.Stats().Errors)
	got, _ = e.Entity("amp")
	require.Equal(t, "&", got)
}

func TestEngine_ArgumentEntityExpansion(t *testing.T) {
	e, sink, _ := newTestEngine(Config{})

	e.CollectedElement("!ENTITY favourite red")
	e.CollectedElement("color fore='&favourite;'")
	require.Equal(t, "#ff0000", sink.style.Fore.Hex())

	// A reference that never closes keeps the partial expansion and counts.
	errs := e.Stats().Errors
	e.CollectedElement("send href='say &hi'")
	require.Equal(t, errs+1, e.Stats().Errors)
	require.NotNil(t, sink.style.Action)
	require.Equal(t, "say ", sink.style.Action.Send)
}
