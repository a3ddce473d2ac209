package places

import "lead-pipeline/internal/models"

// Field masks requested from the provider. Billing depends on these.
const (
	searchFieldMask = "places.id,places.displayName,places.formattedAddress,places.nationalPhoneNumber," +
		"places.internationalPhoneNumber,places.websiteUri,places.rating,places.userRatingCount,places.types," +
		"places.businessStatus,places.location,places.googleMapsUri,nextPageToken"
	detailsFieldMask = "id,displayName,formattedAddress,nationalPhoneNumber,internationalPhoneNumber," +
		"websiteUri,rating,userRatingCount,types,businessStatus,location,googleMapsUri"
)

type searchTextBody struct {
	TextQuery    string        `json:"textQuery"`
	IncludedType string        `json:"includedType,omitempty"`
	PageSize     int           `json:"pageSize,omitempty"`
	LanguageCode string        `json:"languageCode,omitempty"`
	RegionCode   string        `json:"regionCode,omitempty"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
	PageToken    string        `json:"pageToken,omitempty"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchTextResponse struct {
	Places        []placeWire `json:"places"`
	NextPageToken string      `json:"nextPageToken"`
}

type placeWire struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress         string   `json:"formattedAddress"`
	NationalPhoneNumber      string   `json:"nationalPhoneNumber"`
	InternationalPhoneNumber string   `json:"internationalPhoneNumber"`
	WebsiteURI               string   `json:"websiteUri"`
	Rating                   float64  `json:"rating"`
	UserRatingCount          int      `json:"userRatingCount"`
	Types                    []string `json:"types"`
	BusinessStatus           string   `json:"businessStatus"`
	Location                 *latLng  `json:"location"`
	GoogleMapsURI            string   `json:"googleMapsUri"`
}

func (p placeWire) toRecord() models.PlaceRecord {
	rec := models.PlaceRecord{
		ExternalID:         p.ID,
		Name:               p.DisplayName.Text,
		Address:            p.FormattedAddress,
		Phone:              p.NationalPhoneNumber,
		InternationalPhone: p.InternationalPhoneNumber,
		Website:            p.WebsiteURI,
		Rating:             p.Rating,
		ReviewCount:        p.UserRatingCount,
		Categories:         p.Types,
		BusinessStatus:     p.BusinessStatus,
		MapsURL:            p.GoogleMapsURI,
	}
	if p.Location != nil {
		rec.Latitude = p.Location.Latitude
		rec.Longitude = p.Location.Longitude
	}
	return rec
}
