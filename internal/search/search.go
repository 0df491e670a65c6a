package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"gorm.io/gorm"

	"github.com/stagehand/backline/internal/config"
	"github.com/stagehand/backline/internal/lifecycle"
	"github.com/stagehand/backline/internal/logging"
	"github.com/stagehand/backline/internal/models"
)

func NewClient(cfg *config.Config) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.ES_URL},
		Username:  cfg.ES_USER,
		Password:  cfg.ES_PASSWORD,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, err
	}

	res, err := client.Info()
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch error: %s: %s", res.Status(), body)
	}

	return client, nil
}

// ArtistIndexer keeps an elasticsearch index in step with the artist
// table by consuming lifecycle events. The index trails the database by
// design; it is a search accelerator, not a source of truth.
type ArtistIndexer struct {
	ES    *elasticsearch.Client
	DB    *gorm.DB
	Index string
}

type artistDoc struct {
	ID             uint    `json:"id"`
	Name           string  `json:"name"`
	SpotifyID      *string `json:"spotify_id,omitempty"`
	Popularity     *int    `json:"popularity,omitempty"`
	FollowersCount *int64  `json:"followers_count,omitempty"`
}

func (ix *ArtistIndexer) Subscriber() lifecycle.Subscriber {
	return func(ctx context.Context, ev lifecycle.Event) {
		if ev.Entity != lifecycle.EntityArtists {
			return
		}
		switch ev.Kind {
		case lifecycle.EventCreated, lifecycle.EventUpdated, lifecycle.EventRestored:
			ix.index(ctx, ev.EntityID)
		case lifecycle.EventDeleted, lifecycle.EventForceDeleted:
			ix.remove(ctx, ev.EntityID)
		}
	}
}

func (ix *ArtistIndexer) index(ctx context.Context, id uint) {
	l := logging.FromContext(ctx).With("svc", "search.artists", "artist_id", id)

	var artist models.Artist
	if err := ix.DB.WithContext(ctx).First(&artist, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("artist_index_load_failed", "error", err)
		}
		return
	}

	doc := artistDoc{
		ID:             artist.ID,
		Name:           artist.Name,
		SpotifyID:      artist.SpotifyID,
		Popularity:     artist.Popularity,
		FollowersCount: artist.FollowersCount,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		l.Warn("artist_index_marshal_failed", "error", err)
		return
	}

	res, err := ix.ES.Index(ix.Index, bytes.NewReader(body),
		ix.ES.Index.WithDocumentID(strconv.FormatUint(uint64(id), 10)),
		ix.ES.Index.WithContext(ctx),
	)
	if err != nil {
		l.Warn("artist_index_failed", "error", err)
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		l.Warn("artist_index_failed", "status", res.Status())
	}
}

func (ix *ArtistIndexer) remove(ctx context.Context, id uint) {
	l := logging.FromContext(ctx).With("svc", "search.artists", "artist_id", id)

	res, err := ix.ES.Delete(ix.Index, strconv.FormatUint(uint64(id), 10),
		ix.ES.Delete.WithContext(ctx),
	)
	if err != nil {
		l.Warn("artist_unindex_failed", "error", err)
		return
	}
	defer res.Body.Close()
}

// Artists runs a fuzzy multi_match over the artist index.
func Artists(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []models.Artist, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"name^2", "spotify_id"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search error: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Artist `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	artists := make([]models.Artist, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		artists[i] = hit.Source
	}
	return r.Hits.Total.Value, artists, nil
}
