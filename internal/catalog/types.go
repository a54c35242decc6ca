package catalog

// Catalog API response types (MusicBrainz wire shape).

// RecordingSearchResponse is the top-level response from the recording
// search endpoint.
type RecordingSearchResponse struct {
	Created    string      `json:"created"`
	Count      int         `json:"count"`
	Offset     int         `json:"offset"`
	Recordings []Recording `json:"recordings"`
}

// Recording represents a catalog recording entity.
type Recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	LengthMs     int            `json:"length"`
	Score        int            `json:"score"`
	ExtScore     string         `json:"ext:score"` // older API spelling of the same field
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	Releases     []Release      `json:"releases"`
}

// ArtistCredit is one credited artist plus the phrase joining it to the next.
type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		SortName string `json:"sort-name"`
	} `json:"artist"`
}

// Release represents one release context attached to a recording or
// returned by release search.
type Release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	Country      string         `json:"country"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	ReleaseGroup ReleaseGroup   `json:"release-group"`
	Media        []Media        `json:"media"`
}

// ReleaseGroup carries the primary/secondary typing of a release.
type ReleaseGroup struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
}

// Media is one medium (disc, cassette side) of a release.
type Media struct {
	Format string  `json:"format"`
	Tracks []Track `json:"tracks"`
}

// Track is one tracklist entry of a release medium.
type Track struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Position  int    `json:"position"`
	LengthMs  int    `json:"length"`
	Recording *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"recording,omitempty"`
}

// ReleaseSearchResponse is the top-level response from the release search
// endpoint.
type ReleaseSearchResponse struct {
	Count    int       `json:"count"`
	Offset   int       `json:"offset"`
	Releases []Release `json:"releases"`
}
