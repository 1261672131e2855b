// Package service exports a virtual Victron service on the bus.
//
// A Service ties a property registry to the BusItem object tree:
//
//   - the root object "/" serves GetItems, GetValue and SetValues and emits
//     ItemsChanged
//   - every declared property gets an object at "/<name>" serving GetValue,
//     GetText, SetValue, GetMin and GetMax
//   - when the declaration enables S2, an S2 resource manager session is
//     exported at its path (default /S2/0/Rm)
//
// Example usage:
//
//	conn, _ := transport.Dial(transport.DefaultOptions())
//	decl := &model.ServiceDeclaration{
//	    Name:       "com.victronenergy.temperature.virtual_1",
//	    Properties: []model.Property{{Name: "Temperature", Declaration: model.Declaration{Type: variant.TypeDouble}}},
//	}
//	svc, err := service.New(conn, decl, map[string]any{"Temperature": 21.5}, service.DefaultConfig())
//	conn.RequestName(decl.Name)
//
//	svc.SetValuesLocally(map[string]any{"Temperature": 22.0})
package service
