// Package scene holds the static scene catalog and the non-repeating
// scheduler that picks which scene a learner describes next.
package scene

// Scene is a static catalog entry pairing an image with a stable identifier.
type Scene struct {
	ID          string `json:"id"`
	FileName    string `json:"fileName"`
	Description string `json:"description"`
}

// Catalog is the fixed set of practice scenes. Never mutated at runtime.
var Catalog = []Scene{
	{ID: "scene_001", FileName: "park_woman_umbrella.jpg", Description: "A young woman walking in a park with a red umbrella"},
	{ID: "scene_002", FileName: "cafe_reading.jpg", Description: "A person reading a book in a cozy cafe"},
	{ID: "scene_003", FileName: "beach_sunset.jpg", Description: "A beautiful sunset over the ocean with people walking on the beach"},
	{ID: "scene_004", FileName: "city_street_rain.jpg", Description: "A busy city street during a light rain with people carrying umbrellas"},
	{ID: "scene_005", FileName: "library_studying.jpg", Description: "Students studying at tables in a quiet library"},
	{ID: "scene_006", FileName: "market_vegetables.jpg", Description: "A colorful vegetable market with vendors and customers"},
	{ID: "scene_007", FileName: "garden_flowers.jpg", Description: "A beautiful flower garden with blooming roses and tulips"},
	{ID: "scene_008", FileName: "kitchen_cooking.jpg", Description: "A chef cooking in a modern kitchen with fresh ingredients"},
	{ID: "scene_009", FileName: "playground_children.jpg", Description: "Children playing on a playground with swings and slides"},
	{ID: "scene_010", FileName: "mountain_hiking.jpg", Description: "Hikers on a mountain trail with scenic valley views"},
	{ID: "scene_011", FileName: "art_gallery.jpg", Description: "People viewing paintings in an art gallery"},
	{ID: "scene_012", FileName: "train_station.jpg", Description: "A busy train station with commuters waiting on the platform"},
	{ID: "scene_013", FileName: "winter_park.jpg", Description: "A snowy park with children building a snowman"},
	{ID: "scene_014", FileName: "office_meeting.jpg", Description: "A business meeting in a modern conference room"},
	{ID: "scene_015", FileName: "farmer_market.jpg", Description: "A weekend farmers market with fresh produce and crafts"},
}

// ByID returns the catalog scene with the given id, or false if absent.
func ByID(id string) (Scene, bool) {
	for _, s := range Catalog {
		if s.ID == id {
			return s, true
		}
	}
	return Scene{}, false
}
