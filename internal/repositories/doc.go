// Package repositories implements SQLite persistence for client-local state.
//
// Nothing here is authoritative: the API owns lists and items. The database only remembers what the client needs
// across restarts.
//
// Key Implementations:
//   - [PreferenceRepository] : key/value preferences such as the last active list and the stored access token
//   - [ListCacheRepository] : the last fetched copy of each list, so a restart can render before the first fetch
//
// Tables are created by the migrations in the shared package; see [shared.RunMigrations].
package repositories
