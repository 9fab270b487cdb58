package store

// Deletion reasons. Explicitly notified deletions are always labeled
// deleted_by_owner, whoever actually issued them; the watchdog labels
// its inferred deletions deleted_by_other_party.
const (
	ReasonDeletedByOwner      = "deleted_by_owner"
	ReasonDeletedByOtherParty = "deleted_by_other_party"
)

// Peer kinds as stored in the peers table.
const (
	PeerUser    = "user"
	PeerChat    = "chat"
	PeerChannel = "channel"
)

// Message is one observed message. Body is the text at first ingestion
// and is never updated, not even on edits.
type Message struct {
	ID           int64
	ChatID       int64
	MsgID        int64
	FromID       int64
	Body         string
	DetectedURLs string
	Deleted      bool
	ObservedAt   int64
}

// DeletionRecord is one row of the append-only deletion audit log.
// A message raced by both detection paths may legitimately appear twice.
type DeletionRecord struct {
	ID        int64
	MsgID     int64
	ChatID    int64
	Body      string
	Reason    string
	DeletedAt int64
}

// Peer is a cached Telegram entity: display data for alert labels and
// the access hash needed to build API input peers after a restart.
type Peer struct {
	ID         int64
	Kind       string
	AccessHash int64
	Username   string
	FirstName  string
}

// DeletedBatch is the payload of a "tg.deleted" bus event: the IDs from
// one upstream deletion notification. ChannelID is zero unless the
// notification came from a channel, which scopes its message IDs.
type DeletedBatch struct {
	MsgIDs    []int64
	ChannelID int64
}

// DeletedMark is the outcome of MarkDeletedIfPresent: enough prior
// state for the caller to build a deletion record even when the
// original message was never observed.
type DeletedMark struct {
	Found             bool
	WasAlreadyDeleted bool
	ChatID            int64
	Body              string
}
