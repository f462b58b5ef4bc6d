package entity

// ListingFields is the column order of the listing table.
// Cells are mapped onto these names by position.
var ListingFields = []string{
	"id",
	"region",
	"document",
	"object",
	"category",
	"client",
	"tech_supervisor",
	"designer",
	"author_supervisor",
	"contractor",
	"land",
}

// ListingRecord is one row of the declarations table.
type ListingRecord struct {
	ID               string `bson:"id" json:"id"`
	Region           string `bson:"region" json:"region"`
	Document         string `bson:"document" json:"document"`
	Object           string `bson:"object" json:"object"`
	Category         string `bson:"category" json:"category"`
	Client           string `bson:"client" json:"client"`
	TechSupervisor   string `bson:"tech_supervisor" json:"tech_supervisor"`
	Designer         string `bson:"designer" json:"designer"`
	AuthorSupervisor string `bson:"author_supervisor" json:"author_supervisor"`
	Contractor       string `bson:"contractor" json:"contractor"`
	Land             string `bson:"land" json:"land"`
}

// NewListingRecord maps cells onto ListingFields by position.
// The caller guarantees len(cells) == len(ListingFields).
func NewListingRecord(cells []string) *ListingRecord {
	return &ListingRecord{
		ID:               cells[0],
		Region:           cells[1],
		Document:         cells[2],
		Object:           cells[3],
		Category:         cells[4],
		Client:           cells[5],
		TechSupervisor:   cells[6],
		Designer:         cells[7],
		AuthorSupervisor: cells[8],
		Contractor:       cells[9],
		Land:             cells[10],
	}
}

func (r *ListingRecord) RecordID() string     { return r.ID }
func (r *ListingRecord) DisplayTitle() string { return joinNonEmpty(r.ID, r.Object) }
func (r *ListingRecord) Kind() RecordKind     { return KindListing }
