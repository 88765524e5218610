package mti

// Reserved MTIs for the frame-level announcements AliasMap classifies
// directly from CAN frames, independent of the higher-level message
// taxonomy (lccmsg). InitializationComplete and VerifiedNodeID double as
// ordinary lccmsg.Message kinds; AliasMapDefinition/AliasMapReset are pure
// CanFrame-level concepts with no Message-taxonomy counterpart.
var (
	InitializationComplete = New(1, false, false, false, 32)
	VerifiedNodeID         = New(1, false, false, false, 46)
	AliasMapDefinition     = New(1, false, false, false, 2)
	AliasMapReset          = New(1, false, false, false, 3)
)
