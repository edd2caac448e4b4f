// Package profile mirrors the driver's profile and vehicle info.
//
// The profile lives at drivers/approved/{hash}/profile in the directory and
// is shared by every app the driver uses. A local copy is served first and
// refreshed in the background. Vehicle info is kept on the device first and
// pushed to the directory on a best-effort basis.
package profile
