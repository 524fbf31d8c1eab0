package platform

// Package platform contains OS integration helpers: filesystem setup for the
// download directory and opening delivered files in the system file manager
// or default application.
