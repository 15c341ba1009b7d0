// Package seed carries the demo directory: venues, their provider links and
// the mock catalogs each adapter serves when it has no credentials.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/internaltypes"
)

// Link is a provider listing of a seeded venue.
type Link struct {
	Provider   string
	ExternalID string
	SyncStatus venue.SyncStatus
	// Unlisted marks an external id the provider no longer serves.
	Unlisted bool
}

type Entry struct {
	Venue  venue.Venue
	Rating float64
	Links  []Link
}

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func restaurant(id, name, address, city, country, domain, cuisine, price string, rating float64, links ...Link) Entry {
	return Entry{
		Venue: venue.Venue{
			ID: id, Name: name, Category: category.Restaurant,
			Address: address, City: city, Country: country, Domain: domain,
			Metadata: map[string]string{"cuisine": cuisine, "price_range": price},
			Status:   venue.StatusActive,
		},
		Rating: rating,
		Links:  links,
	}
}

func salon(id, name string, cat category.Category, address, city, country, key, value string, rating float64, links ...Link) Entry {
	return Entry{
		Venue: venue.Venue{
			ID: id, Name: name, Category: cat,
			Address: address, City: city, Country: country,
			Metadata: map[string]string{key: value},
			Status:   venue.StatusActive,
		},
		Rating: rating,
		Links:  links,
	}
}

func link(provider, ext string) Link {
	return Link{Provider: provider, ExternalID: ext, SyncStatus: venue.SyncActive}
}

func demo(ext string) Link      { return link(reservation.ProviderDemo, ext) }
func zenchef(ext string) Link   { return link(reservation.ProviderZenchef, ext) }
func opentable(ext string) Link { return link(reservation.ProviderOpenTable, ext) }
func resy(ext string) Link      { return link(reservation.ProviderResy, ext) }

// Entries is the full seed set, in registration order.
func Entries() []Entry {
	return []Entry{
		restaurant("demo_paris_001", "The Golden Fork", "15 Avenue des Champs, 75008 Paris", "Paris", "France", "goldenfork.example.com", "French", "$$$", 4.5, demo("ext_goldenfork_001")),
		restaurant("demo_paris_002", "Urban Garden", "42 Rue de Rivoli, 75001 Paris", "Paris", "France", "urbangarden.example.com", "Contemporary", "$$", 4.8, demo("ext_urbangarden_002")),
		restaurant("demo_paris_003", "Sakura Blossom", "8 Rue Saint-Anne, 75001 Paris", "Paris", "France", "sakurablossom.example.com", "Japanese", "$$$", 4.6,
			demo("ext_sakurablossom_003"), zenchef("zc_sakurablossom_003")),
		restaurant("demo_paris_004", "The Blue Oyster", "23 Boulevard Saint-Germain, 75005 Paris", "Paris", "France", "", "Seafood", "$$$$", 4.7, demo("ext_blueoyster_004")),
		restaurant("demo_paris_005", "Le Dernier Service", "3 Rue des Martyrs, 75009 Paris", "Paris", "France", "dernierservice.example.com", "French", "$$", 4.1,
			Link{Provider: reservation.ProviderDemo, ExternalID: "ext_dernierservice_005", SyncStatus: venue.SyncError, Unlisted: true}),
		restaurant("demo_paris_006", "The Unlisted Bistro", "71 Rue Oberkampf, 75011 Paris", "Paris", "France", "unlistedbistro.example.com", "Bistro", "$$", 4.0),

		restaurant("demo_london_001", "The Gilded Plate", "127 Kensington High Street, London W8", "London", "United Kingdom", "gildedplate.example.com", "British", "$$$$", 4.8, demo("ext_gildedplate_001")),
		restaurant("demo_london_002", "Spice Route", "45 Brick Lane, London E1", "London", "United Kingdom", "", "Indian", "$$", 4.6, demo("ext_spiceroute_002")),
		restaurant("demo_london_003", "The Green Table", "88 Borough Market, London SE1", "London", "United Kingdom", "greentable.example.com", "Vegetarian", "$$", 4.7, demo("ext_greentable_003")),

		restaurant("demo_nyc_001", "Manhattan Nights", "350 5th Avenue, New York, NY 10118", "New York", "United States", "manhattannights.example.com", "American", "$$$", 4.7,
			demo("ext_manhattannights_001"), opentable("110437")),
		restaurant("demo_nyc_002", "Little Italy Kitchen", "156 Mulberry Street, New York, NY 10013", "New York", "United States", "littleitalykitchen.example.com", "Italian", "$$", 4.5,
			demo("ext_littleitaly_002"), resy("1505")),
		restaurant("demo_nyc_003", "Harlem Soul", "2340 Frederick Douglass Blvd, New York, NY 10027", "New York", "United States", "", "Soul Food", "$$", 4.8, demo("ext_harlemsoul_003")),

		salon("demo_paris_hair_001", "Salon Chic", category.HairSalon, "10 Rue du Faubourg, 75008 Paris", "Paris", "France", "service", "Haircut", 4.6, demo("ext_salonchic_001")),
		salon("demo_paris_hair_002", "Cut & Color Studio", category.HairSalon, "55 Avenue Montaigne, 75008 Paris", "Paris", "France", "service", "Coloring", 4.9, demo("ext_cutcolor_002")),
		salon("demo_london_hair_001", "Blade & Fade", category.HairSalon, "22 Soho Square, London W1", "London", "United Kingdom", "service", "Haircut", 4.7, demo("ext_bladefade_001")),
		salon("demo_paris_spa_001", "Zen Retreat", category.Spa, "18 Place Vendome, 75001 Paris", "Paris", "France", "service", "Massage", 4.8, demo("ext_zenretreat_001")),
		salon("demo_paris_fit_001", "Studio Élan", category.Fitness, "12 Rue de la Roquette, 75011 Paris", "Paris", "France", "activity", "Yoga", 4.6, demo("ext_studioelan_001")),

		restaurant("rest_paris_001", "Le Petit Paris", "9 Carrefour de l'Odéon, 75006 Paris", "Paris", "France", "lepetitparis.fr", "French", "$$", 4.5, zenchef("zc_lepetitparis_001")),
		restaurant("rest_paris_002", "La Tour Eiffel Bistro", "80 Rue de Charonne, 75011 Paris", "Paris", "France", "latoureiffelbistro.com", "Contemporary", "$$$", 4.8, zenchef("zc_latoureiffel_002")),
		restaurant("rest_lyon_001", "Le Bouchon Lyonnais", "40 Quai de la Plage, 69660 Collonges-au-Mont-d'Or", "Lyon", "France", "bouchonlyonnais.fr", "French", "$$$", 4.9, zenchef("zc_bouchonlyonnais_001")),
		restaurant("rest_lyon_002", "Chez Paul", "173 Rue Cuvier, 69006 Lyon", "Lyon", "France", "", "Contemporary", "$$", 4.7, zenchef("zc_chezpaul_002")),
		restaurant("rest_lyon_003", "Trattoria Lyon", "33 Rue Malesherbes, 69006 Lyon", "Lyon", "France", "trattoria-lyon.com", "Italian", "$$", 4.8, zenchef("zc_trattorialyon_003")),
		restaurant("rest_marseille_001", "Le Vieux Port", "2 Quai du Port, 13002 Marseille", "Marseille", "France", "vieuxport-restaurant.fr", "Mediterranean", "$$$", 4.8, zenchef("zc_levieuxport_001")),
		restaurant("rest_marseille_002", "Bouillabaisse d'Or", "158 Rue du Vallon des Auffes, 13007 Marseille", "Marseille", "France", "bouillabaissedor.com", "Seafood", "$$$", 4.6, zenchef("zc_bouillabaisseor_002")),
		restaurant("rest_marseille_003", "La Maison Bleue", "Anse de Maldormé, 13007 Marseille", "Marseille", "France", "", "French", "$$", 4.5, zenchef("zc_lamaisonbleue_003")),
	}
}

// Catalog returns what provider lists, keyed by external id. Unlisted links
// are left out, so a mock adapter reports them as unknown.
func Catalog(provider string) map[string]reservation.VenueResult {
	out := map[string]reservation.VenueResult{}
	for _, e := range Entries() {
		for _, l := range e.Links {
			if l.Provider != provider || l.Unlisted {
				continue
			}
			out[l.ExternalID] = reservation.VenueResult{
				ExternalID: l.ExternalID,
				Name:       e.Venue.Name,
				Category:   e.Venue.Category,
				Address:    e.Venue.Address,
				City:       e.Venue.City,
				Rating:     e.Rating,
				PriceRange: e.Venue.Metadata["price_range"],
				Attributes: e.Venue.Metadata,
			}
		}
	}
	return out
}

// Load writes every seed venue and link. Records that already exist are left
// alone, so Load can run on every start.
func Load(ctx context.Context, store registry.Store) (created int, err error) {
	for i, e := range Entries() {
		v := e.Venue
		v.CreatedAt = epoch.Add(time.Duration(i) * time.Minute)
		v.UpdatedAt = v.CreatedAt
		switch err := store.CreateVenue(ctx, v); {
		case err == nil:
			created++
		case !errors.Is(err, internaltypes.ErrConflict):
			return created, err
		}
		for j, l := range e.Links {
			link := venue.ProviderLink{
				VenueID:    v.ID,
				Provider:   l.Provider,
				ExternalID: l.ExternalID,
				SyncStatus: l.SyncStatus,
				CreatedAt:  v.CreatedAt.Add(time.Duration(j) * time.Second),
			}
			if err := store.CreateLink(ctx, link); err != nil && !errors.Is(err, internaltypes.ErrConflict) {
				return created, err
			}
		}
	}
	return created, nil
}
