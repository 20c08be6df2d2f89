// Package provider defines the capability interfaces over the external
// generation providers (image and video). The interfaces serve as the
// boundary between the task lifecycle core and the providers' wire
// formats, which the core treats as opaque.
package provider
