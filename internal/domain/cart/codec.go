package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/grabber-app/cart/internal/domain/product"
)

// The persisted form is a JSON object mirroring the cart model: ordered line
// items with their product snapshots, the configured base delivery fee, the
// free-delivery threshold, discount, and selected address. Monetary values
// are encoded as decimal strings to keep full precision. Derived fields
// (subtotal, total) are written for readers of the blob but recomputed on
// restore.

func (e *Engine) encodeLocked() []byte {
	subtotal, fee, total := computeTotals(e.items, e.baseFee, e.threshold, e.discount)

	var enc jx.Encoder
	enc.ObjStart()

	enc.FieldStart("items")
	enc.ArrStart()
	for i := range e.items {
		encodeLineItem(&enc, &e.items[i])
	}
	enc.ArrEnd()

	enc.FieldStart("subtotal")
	enc.Str(subtotal.String())
	enc.FieldStart("deliveryFee")
	enc.Str(e.baseFee.String())
	enc.FieldStart("effectiveDeliveryFee")
	enc.Str(fee.String())
	enc.FieldStart("freeDeliveryThreshold")
	enc.Str(e.threshold.String())
	enc.FieldStart("discount")
	enc.Str(e.discount.String())
	enc.FieldStart("total")
	enc.Str(total.String())
	enc.FieldStart("selectedAddressId")
	enc.Str(e.addressID)

	enc.ObjEnd()
	return enc.Bytes()
}

func encodeLineItem(enc *jx.Encoder, item *LineItem) {
	enc.ObjStart()
	enc.FieldStart("productId")
	enc.Str(item.ProductID)
	enc.FieldStart("product")
	encodeProduct(enc, &item.Product)
	enc.FieldStart("quantity")
	enc.Int(item.Quantity)
	enc.FieldStart("unitPrice")
	enc.Str(item.UnitPrice.String())
	enc.FieldStart("subtotal")
	enc.Str(item.Subtotal.String())
	enc.ObjEnd()
}

func encodeProduct(enc *jx.Encoder, p *product.Product) {
	enc.ObjStart()
	enc.FieldStart("id")
	enc.Str(p.ID)
	enc.FieldStart("name")
	enc.Str(p.Name)
	enc.FieldStart("description")
	enc.Str(p.Description)
	enc.FieldStart("price")
	enc.Str(p.Price.String())
	enc.FieldStart("category")
	enc.Str(p.Category)
	enc.FieldStart("unit")
	enc.Str(p.Unit)
	enc.FieldStart("inStock")
	enc.Bool(p.InStock)
	enc.FieldStart("image")
	enc.ObjStart()
	enc.FieldStart("thumbnail")
	enc.Str(p.Image.Thumbnail)
	enc.FieldStart("mobile")
	enc.Str(p.Image.Mobile)
	enc.FieldStart("tablet")
	enc.Str(p.Image.Tablet)
	enc.FieldStart("desktop")
	enc.Str(p.Image.Desktop)
	enc.ObjEnd()
	enc.ObjEnd()
}

// decodeLocked replaces the engine state with the decoded blob. Derived
// totals are not read back; they are recomputed from the restored items and
// configuration, which by idempotence yields the persisted values.
func (e *Engine) decodeLocked(data []byte) error {
	var (
		items     []LineItem
		baseFee   = e.defaults.DeliveryFee
		threshold = e.defaults.FreeDeliveryThreshold
		discount  = decimal.Zero
		addressID string
	)

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeLineItem(d)
				if err != nil {
					return err
				}
				items = append(items, item)
				return nil
			})
		case "deliveryFee":
			return decodeDecimal(d, &baseFee)
		case "freeDeliveryThreshold":
			return decodeDecimal(d, &threshold)
		case "discount":
			return decodeDecimal(d, &discount)
		case "selectedAddressId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			addressID = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return errors.Wrap(err, "decode cart state")
	}

	e.items = items
	e.baseFee = baseFee
	e.threshold = threshold
	e.discount = discount
	e.addressID = addressID
	return nil
}

func decodeLineItem(d *jx.Decoder) (LineItem, error) {
	var item LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			item.ProductID = v
			return nil
		case "product":
			return decodeProduct(d, &item.Product)
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			item.Quantity = v
			return nil
		case "unitPrice":
			return decodeDecimal(d, &item.UnitPrice)
		case "subtotal":
			return decodeDecimal(d, &item.Subtotal)
		default:
			return d.Skip()
		}
	})
	return item, err
}

func decodeProduct(d *jx.Decoder, p *product.Product) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.ID = v
			return nil
		case "name":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.Name = v
			return nil
		case "description":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.Description = v
			return nil
		case "price":
			return decodeDecimal(d, &p.Price)
		case "category":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.Category = v
			return nil
		case "unit":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.Unit = v
			return nil
		case "inStock":
			v, err := d.Bool()
			if err != nil {
				return err
			}
			p.InStock = v
			return nil
		case "image":
			return d.Obj(func(d *jx.Decoder, key string) error {
				v, err := d.Str()
				if err != nil {
					return err
				}
				switch key {
				case "thumbnail":
					p.Image.Thumbnail = v
				case "mobile":
					p.Image.Mobile = v
				case "tablet":
					p.Image.Tablet = v
				case "desktop":
					p.Image.Desktop = v
				}
				return nil
			})
		default:
			return d.Skip()
		}
	})
}

func decodeDecimal(d *jx.Decoder, out *decimal.Decimal) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return errors.Wrapf(err, "parse decimal %q", s)
	}
	*out = v
	return nil
}
