// Package theme loads the CSS stylesheets applied to GTK widget windows.
// Bundled themes are embedded; a file with the same name in the user themes
// directory overrides them and can be hot-reloaded.
package theme
