package models

// Quest is one entry of the static reward catalog.
type Quest struct {
	ID     string
	Reward int
}

// DefaultCatalog is the social/weekly quest catalog, in claim order. Loaded
// once at startup and never mutated; reward amounts are part of the claim RPC
// payload.
var DefaultCatalog = []Quest{
	{ID: "social_tweet_4", Reward: 500},
	{ID: "social_tweet_5", Reward: 100},
	{ID: "social_tweet_6", Reward: 100},
	{ID: "weekly_twitter", Reward: 300},
	{ID: "weekly_telegram", Reward: 300},
	{ID: "weekly_telegram_1", Reward: 300},
}

// CatalogHas reports whether the catalog contains the given quest id.
func CatalogHas(catalog []Quest, id string) bool {
	for _, q := range catalog {
		if q.ID == id {
			return true
		}
	}
	return false
}
