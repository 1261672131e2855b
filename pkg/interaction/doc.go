// Package interaction talks to other services on the bus.
//
// Client covers the calls a virtual device makes towards its peers:
//
//   - GetValue, GetMin, GetMax and SetValue on a remote BusItem
//   - AddSettings and RemoveSettings on com.victronenergy.settings
//   - Watch, which follows a service's ItemsChanged signal
//
// # Client Usage
//
//	client := interaction.NewClient(conn, interaction.WithLogger(logger))
//
//	// Read a value
//	v, err := client.GetValue(ctx, interaction.Target{
//	    Destination: "com.victronenergy.settings",
//	    Path:        "/Settings/SystemSetup/AcInput1",
//	})
//
//	// Write a value; the type is inferred when empty
//	status, err := client.SetValue(ctx, target, 21.5, "")
//
//	// Create settings
//	_, err = client.AddSettings(ctx, []interaction.Setting{
//	    {Path: "/Settings/Devices/virtual_1/ClassAndVrmInstance", Default: "tank:100"},
//	})
//
// # Subscriptions
//
// Watch primes a Subscription with the peer's GetItems and then reports
// only the subscribed items whose value or text changed. Calls are not
// retried; remote errors are returned wrapped.
package interaction
