package vk

// Session is a live authenticated handle to the VK API, bound to one account
type Session struct {
	AccessToken string
	UserID      int64
}

// MediaRecord is one catalog entry describing a remote audio item and its
// retrieval URL. Immutable once fetched; URL may be empty (unavailable), a
// direct file link, or a streaming manifest.
type MediaRecord struct {
	ID              int64
	OwnerID         int64
	Artist          string
	Title           string
	URL             string
	DurationSeconds int
	AccessKey       string
	Album           string
	AlbumArtURL     string
	GenreID         int
	LyricsID        int
	AddedAt         int64
}

// tokenResponse is the OAuth token grant payload. Error fields are populated
// on challenge outcomes instead of an HTTP error status.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	UserID           int64  `json:"user_id"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ValidationType   string `json:"validation_type"`
	RedirectURI      string `json:"redirect_uri"`
	CaptchaSID       string `json:"captcha_sid"`
	CaptchaImg       string `json:"captcha_img"`
	PhoneMask        string `json:"phone_mask"`
}

// apiEnvelope is the method-call payload: either "response" or "error" is set
type apiEnvelope[T any] struct {
	Response T         `json:"response"`
	Error    *apiError `json:"error"`
}

// apiError is the error object embedded in method responses
type apiError struct {
	Code        int    `json:"error_code"`
	Message     string `json:"error_msg"`
	CaptchaSID  string `json:"captcha_sid"`
	CaptchaImg  string `json:"captcha_img"`
	RedirectURI string `json:"redirect_uri"`
}

// audioGetResponse is the audio.get result
type audioGetResponse struct {
	Count int         `json:"count"`
	Items []audioItem `json:"items"`
}

// audioItem is a single audio.get entry. Numeric fields the API omits for a
// given track unmarshal to zero, which is exactly the mapping we want.
type audioItem struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	Artist    string `json:"artist"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	URL       string `json:"url"`
	AccessKey string `json:"access_key"`
	GenreID   int    `json:"genre_id"`
	LyricsID  int    `json:"lyrics_id"`
	Date      int64  `json:"date"`
	Album     *struct {
		Title string `json:"title"`
		Thumb *struct {
			Photo300 string `json:"photo_300"`
			Photo600 string `json:"photo_600"`
		} `json:"thumb"`
	} `json:"album"`
}

// toMediaRecord flattens the wire shape into the immutable catalog record
func (a audioItem) toMediaRecord() MediaRecord {
	rec := MediaRecord{
		ID:              a.ID,
		OwnerID:         a.OwnerID,
		Artist:          a.Artist,
		Title:           a.Title,
		URL:             a.URL,
		DurationSeconds: a.Duration,
		AccessKey:       a.AccessKey,
		GenreID:         a.GenreID,
		LyricsID:        a.LyricsID,
		AddedAt:         a.Date,
	}
	if a.Album != nil {
		rec.Album = a.Album.Title
		if a.Album.Thumb != nil {
			rec.AlbumArtURL = a.Album.Thumb.Photo600
			if rec.AlbumArtURL == "" {
				rec.AlbumArtURL = a.Album.Thumb.Photo300
			}
		}
	}
	return rec
}

// profileInfo is the account.getProfileInfo result
type profileInfo struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ScreenName string `json:"screen_name"`
}
