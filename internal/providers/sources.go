package providers

import (
	"log/slog"

	"github.com/vmunix/andrate/internal/catalog"
)

// Sources builds the provider set: AniList serves anime, TMDB serves tv
// and movie. The two TMDB kinds share one breaker since they share an upstream.
func Sources(an AniListAPI, tm TMDBAPI, cfg BreakerConfig, log *slog.Logger) catalog.Sources {
	anime := Guard("anilist", NewAniList(an), cfg, log)
	video := Guard("tmdb", NewTMDB(tm), cfg, log)
	return catalog.Sources{
		catalog.Anime: anime,
		catalog.TV:    video,
		catalog.Movie: video,
	}
}
