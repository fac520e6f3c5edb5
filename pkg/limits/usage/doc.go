// Package usage meters monthly consumption of quota-limited resources.
//
// Some quotas are not a count of existing records but a rate over a billing
// period, such as AI assist requests per month. The Meter keeps one counter per
// tenant, quota and calendar month in the same storage.Backend that holds rate
// limit windows, so a Redis deployment shares usage across instances.
//
// Months are calendar months in UTC. Counters reset at 00:00 UTC on the first
// day of each month.
package usage
