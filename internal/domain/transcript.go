package domain

type Speaker string

const (
	SpeakerLocal  Speaker = "user"
	SpeakerRemote Speaker = "assistant"
)

// TranscriptEntry is one line of the merged conversation view.
// The query endpoint returns the full recent window each time, so a fetched
// list is an authoritative replacement snapshot, not a delta.
type TranscriptEntry struct {
	Speaker    Speaker `json:"speaker"`
	Text       string  `json:"text"`
	SentTS     float64 `json:"sent_ts"`
	ReceivedAt string  `json:"received_at"`
	RoomID     string  `json:"room_id"`
}
