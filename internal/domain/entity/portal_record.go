package entity

// PortalFields is the order of the cells that follow a result checkbox.
var PortalFields = []string{
	"title",
	"number",
	"date",
	"session",
	"organizer",
	"kind",
	"original",
	"status",
}

// PortalRecord is one search result of the document portal.
// ID is the value of the result's checkbox.
type PortalRecord struct {
	ID        string `bson:"id" json:"id"`
	Title     string `bson:"title" json:"title"`
	Number    string `bson:"number" json:"number"`
	Date      string `bson:"date" json:"date"`
	Session   string `bson:"session" json:"session"`
	Organizer string `bson:"organizer" json:"organizer"`
	DocKind   string `bson:"kind" json:"kind"`
	Original  string `bson:"original" json:"original"`
	Status    string `bson:"status" json:"status"`
}

// NewPortalRecord maps cells onto PortalFields by position.
// The caller guarantees len(cells) == len(PortalFields).
func NewPortalRecord(id string, cells []string) *PortalRecord {
	return &PortalRecord{
		ID:        id,
		Title:     cells[0],
		Number:    cells[1],
		Date:      cells[2],
		Session:   cells[3],
		Organizer: cells[4],
		DocKind:   cells[5],
		Original:  cells[6],
		Status:    cells[7],
	}
}

func (r *PortalRecord) RecordID() string { return r.ID }
func (r *PortalRecord) DisplayTitle() string {
	return joinNonEmpty(r.ID, r.Number, r.Date, r.Title)
}
func (r *PortalRecord) Kind() RecordKind { return KindPortal }
