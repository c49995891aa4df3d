package db

import (
	"fmt"
)

// initialSQL creates every table the entity store persists. Statements are
// idempotent so bring-up and restarts share one path.
const initialSQL = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT 'general',
	updated_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT UNIQUE,
	password_hash TEXT NOT NULL,
	is_admin BOOLEAN NOT NULL DEFAULT 0,
	media_server_username TEXT,
	media_server_token TEXT,
	share_listening BOOLEAN NOT NULL DEFAULT 1,
	share_taste BOOLEAN NOT NULL DEFAULT 1,
	taste_cluster TEXT,
	taste_tags TEXT,
	compatibility_vector TEXT,
	last_login_at TIMESTAMP,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS artists (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	sort_name TEXT,
	disambiguation TEXT,
	musicbrainz_id TEXT,
	spotify_id TEXT,
	discogs_id TEXT,
	lastfm_url TEXT,
	biography TEXT,
	country TEXT,
	formed_year INTEGER,
	disbanded_year INTEGER,
	genres TEXT,
	tags TEXT,
	mean_danceability REAL,
	mean_energy REAL,
	mean_valence REAL,
	mean_tempo REAL,
	spotify_popularity INTEGER,
	lastfm_listeners INTEGER,
	lastfm_plays INTEGER,
	in_library BOOLEAN NOT NULL DEFAULT 0,
	media_server_key TEXT,
	image_url TEXT,
	thumb_url TEXT,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_artists_media_key ON artists(media_server_key);
CREATE INDEX IF NOT EXISTS idx_artists_name ON artists(name);

CREATE TABLE IF NOT EXISTS albums (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	artist_id INTEGER NOT NULL,
	album_type TEXT,
	release_type TEXT,
	musicbrainz_release_group_id TEXT,
	musicbrainz_release_id TEXT,
	spotify_id TEXT,
	discogs_id TEXT,
	release_date TIMESTAMP,
	release_year INTEGER,
	label TEXT,
	catalog_number TEXT,
	country TEXT,
	total_tracks INTEGER,
	total_discs INTEGER,
	duration_seconds INTEGER,
	mean_danceability REAL,
	mean_energy REAL,
	mean_valence REAL,
	mean_tempo REAL,
	spotify_popularity INTEGER,
	in_library BOOLEAN NOT NULL DEFAULT 0,
	media_server_key TEXT,
	format TEXT,
	bitrate INTEGER,
	sample_rate INTEGER,
	bit_depth INTEGER,
	cover_url TEXT,
	thumb_url TEXT,
	created_at TIMESTAMP,
	updated_at TIMESTAMP,
	FOREIGN KEY (artist_id) REFERENCES artists(id)
);
CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist_id);
CREATE INDEX IF NOT EXISTS idx_albums_media_key ON albums(media_server_key);

CREATE TABLE IF NOT EXISTS tracks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	album_id INTEGER NOT NULL,
	disc_number INTEGER,
	track_number INTEGER,
	musicbrainz_id TEXT,
	spotify_id TEXT,
	isrc TEXT,
	duration_ms INTEGER,
	features TEXT,
	spotify_popularity INTEGER,
	in_library BOOLEAN NOT NULL DEFAULT 0,
	media_server_key TEXT,
	created_at TIMESTAMP,
	updated_at TIMESTAMP,
	FOREIGN KEY (album_id) REFERENCES albums(id)
);
CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album_id);
CREATE INDEX IF NOT EXISTS idx_tracks_media_key ON tracks(media_server_key);

CREATE TABLE IF NOT EXISTS listening_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	track_id INTEGER,
	album_id INTEGER,
	artist_id INTEGER,
	track_key TEXT,
	album_key TEXT,
	artist_key TEXT,
	played_at TIMESTAMP NOT NULL,
	play_duration_ms INTEGER,
	track_duration_ms INTEGER,
	completion REAL NOT NULL DEFAULT 0,
	skipped BOOLEAN NOT NULL DEFAULT 0,
	source TEXT,
	device TEXT,
	player TEXT,
	hour_of_day INTEGER,
	day_of_week INTEGER
);
CREATE INDEX IF NOT EXISTS idx_listening_user_time ON listening_events(user_id, played_at);
CREATE INDEX IF NOT EXISTS idx_listening_artist ON listening_events(artist_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_listening_dedup ON listening_events(user_id, track_key, played_at);

CREATE TABLE IF NOT EXISTS wishlist_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	artist_id INTEGER,
	album_id INTEGER,
	artist_name TEXT,
	album_title TEXT,
	track_title TEXT,
	musicbrainz_id TEXT,
	spotify_id TEXT,
	status TEXT NOT NULL DEFAULT 'wanted',
	priority TEXT NOT NULL DEFAULT 'normal',
	source TEXT,
	confidence REAL,
	preferred_format TEXT,
	auto_download BOOLEAN NOT NULL DEFAULT 0,
	playlist_group TEXT,
	notes TEXT,
	last_searched_at TIMESTAMP,
	search_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_wishlist_status ON wishlist_items(status);

CREATE TABLE IF NOT EXISTS downloads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	wishlist_id INTEGER,
	artist_name TEXT NOT NULL,
	album_title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	status_message TEXT,
	release_title TEXT,
	size_bytes INTEGER,
	format TEXT,
	quality TEXT,
	seeders INTEGER,
	leechers INTEGER,
	score REAL,
	indexer_id INTEGER,
	indexer_name TEXT,
	guid TEXT,
	protocol TEXT,
	download_url TEXT,
	download_client TEXT,
	download_id TEXT,
	progress REAL NOT NULL DEFAULT 0,
	download_speed INTEGER,
	eta_seconds INTEGER,
	download_path TEXT,
	final_path TEXT,
	beets_imported BOOLEAN NOT NULL DEFAULT 0,
	source TEXT,
	started_at TIMESTAMP,
	completed_at TIMESTAMP,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status);
CREATE INDEX IF NOT EXISTS idx_downloads_wishlist ON downloads(wishlist_id);

CREATE TABLE IF NOT EXISTS recommendations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	artist_id INTEGER,
	album_id INTEGER,
	track_id INTEGER,
	artist_name TEXT,
	album_title TEXT,
	track_title TEXT,
	image_url TEXT,
	category TEXT NOT NULL,
	reason TEXT,
	reason_details TEXT,
	based_on_artist_id INTEGER,
	based_on_album_id INTEGER,
	confidence REAL NOT NULL DEFAULT 0,
	relevance REAL NOT NULL DEFAULT 0,
	novelty REAL NOT NULL DEFAULT 0,
	score_factors TEXT,
	shown BOOLEAN NOT NULL DEFAULT 0,
	clicked BOOLEAN NOT NULL DEFAULT 0,
	dismissed BOOLEAN NOT NULL DEFAULT 0,
	added_to_wishlist BOOLEAN NOT NULL DEFAULT 0,
	shown_at TIMESTAMP,
	clicked_at TIMESTAMP,
	dismissed_at TIMESTAMP,
	playlist_group TEXT,
	expires_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_recommendations_user ON recommendations(user_id, category);
CREATE INDEX IF NOT EXISTS idx_recommendations_expiry ON recommendations(expires_at);

CREATE TABLE IF NOT EXISTS taste_profiles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	version INTEGER NOT NULL,
	top_genres TEXT,
	preferred_decades TEXT,
	mean_features TEXT,
	total_plays INTEGER NOT NULL DEFAULT 0,
	total_artists INTEGER NOT NULL DEFAULT 0,
	total_albums INTEGER NOT NULL DEFAULT 0,
	total_tracks INTEGER NOT NULL DEFAULT 0,
	peak_hours TEXT,
	peak_days TEXT,
	novelty_preference REAL NOT NULL DEFAULT 0.5,
	profile_data TEXT,
	created_at TIMESTAMP,
	UNIQUE(user_id, version)
);

CREATE TABLE IF NOT EXISTS user_preferences (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	key TEXT NOT NULL,
	weight REAL NOT NULL DEFAULT 0,
	confidence REAL NOT NULL DEFAULT 0,
	updated_at TIMESTAMP,
	UNIQUE(user_id, kind, key)
);

CREATE TABLE IF NOT EXISTS quality_profiles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	preferred_formats TEXT,
	min_quality TEXT,
	max_size_mb INTEGER,
	min_seeders INTEGER NOT NULL DEFAULT 0,
	release_types TEXT,
	format_match_weight REAL NOT NULL DEFAULT 0.6,
	seeder_weight REAL NOT NULL DEFAULT 0.4,
	is_default BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS automation_rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	trigger TEXT NOT NULL,
	conditions TEXT NOT NULL DEFAULT '[]',
	actions TEXT NOT NULL DEFAULT '[]',
	priority INTEGER NOT NULL DEFAULT 0,
	enabled BOOLEAN NOT NULL DEFAULT 1,
	last_triggered_at TIMESTAMP,
	trigger_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_rules_trigger ON automation_rules(trigger, enabled);

CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	read BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP
);
`

// Migrate brings the schema up to date. Safe to run on every startup.
func (db *DB) Migrate() error {
	if _, err := db.Exec(initialSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	// Additive migrations for columns introduced after the initial schema.
	additive := []struct {
		table, column, ddl string
	}{
		{"downloads", "score", "ALTER TABLE downloads ADD COLUMN score REAL"},
		{"wishlist_items", "playlist_group", "ALTER TABLE wishlist_items ADD COLUMN playlist_group TEXT"},
		{"users", "taste_tags", "ALTER TABLE users ADD COLUMN taste_tags TEXT"},
	}
	for _, m := range additive {
		ok, err := db.hasColumn(m.table, m.column)
		if err != nil {
			return err
		}
		if !ok {
			if _, err := db.Exec(m.ddl); err != nil {
				return fmt.Errorf("migrate %s.%s: %w", m.table, m.column, err)
			}
			db.logger.Info("applied migration", "table", m.table, "column", m.column)
		}
	}

	return nil
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
