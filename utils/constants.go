// File: utils/constants.go
package utils

// SlotCachePrefix is the prefix used for Redis slot discovery cache keys.
const SlotCachePrefix = "slots:"

// AlertDedupePrefix is the prefix used for Redis vacancy-alert dedupe keys.
const AlertDedupePrefix = "alert:"

// StaleSlotWarning is attached to every slot that came from a scraped portal.
const StaleSlotWarning = "data obtained via scraping may be stale"
