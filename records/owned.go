package records

import (
	"fmt"

	"github.com/jacentio/members/store"
)

// Address is a postal address of a user.
type Address struct {
	Meta
	Street  string `dynamodbav:"street" json:"street"`
	Suite   string `dynamodbav:"suite,omitempty" json:"suite,omitempty"`
	City    string `dynamodbav:"city" json:"city"`
	Zipcode string `dynamodbav:"zipcode,omitempty" json:"zipcode,omitempty"`
	Geo     *Geo   `dynamodbav:"geo,omitempty" json:"geo,omitempty"`
	User    string `dynamodbav:"user" json:"user"`
}

// Geo is a coordinate pair.
type Geo struct {
	Lat string `dynamodbav:"lat" json:"lat"`
	Lng string `dynamodbav:"lng" json:"lng"`
}

func (*Address) TableName() string      { return string(Addresses) }
func (a *Address) EntityRef() string    { return "address#" + a.ID }
func (*Address) EntityType() string     { return "address" }
func (*Address) Collection() Collection { return Addresses }
func (*Address) OwnerField() string     { return "user" }
func (a *Address) OwnerID() string      { return a.User }
func (a *Address) SetOwner(id string)   { a.User = id }
func (a *Address) ParentRef() string    { return "user#" + a.User }
func (a *Address) ParentCheck() *store.ConditionCheck {
	return ownerCheck(Users, a.User)
}

func (a *Address) Validate() error {
	return firstError(required("street", a.Street), required("city", a.City), required("user", a.User))
}

// Company is a user's employer.
type Company struct {
	Meta
	Name        string `dynamodbav:"name" json:"name"`
	CatchPhrase string `dynamodbav:"catchPhrase,omitempty" json:"catchPhrase,omitempty"`
	BS          string `dynamodbav:"bs,omitempty" json:"bs,omitempty"`
	User        string `dynamodbav:"user" json:"user"`
}

func (*Company) TableName() string      { return string(Companies) }
func (c *Company) EntityRef() string    { return "company#" + c.ID }
func (*Company) EntityType() string     { return "company" }
func (*Company) Collection() Collection { return Companies }
func (*Company) OwnerField() string     { return "user" }
func (c *Company) OwnerID() string      { return c.User }
func (c *Company) SetOwner(id string)   { c.User = id }
func (c *Company) ParentRef() string    { return "user#" + c.User }
func (c *Company) ParentCheck() *store.ConditionCheck {
	return ownerCheck(Users, c.User)
}

func (c *Company) Validate() error {
	return firstError(required("name", c.Name), required("user", c.User))
}

// Todo is a task on a user's list.
type Todo struct {
	Meta
	Title     string `dynamodbav:"title" json:"title"`
	Completed bool   `dynamodbav:"completed" json:"completed"`
	User      string `dynamodbav:"user" json:"user"`
}

func (*Todo) TableName() string      { return string(Todos) }
func (t *Todo) EntityRef() string    { return "todo#" + t.ID }
func (*Todo) EntityType() string     { return "todo" }
func (*Todo) Collection() Collection { return Todos }
func (*Todo) OwnerField() string     { return "user" }
func (t *Todo) OwnerID() string      { return t.User }
func (t *Todo) SetOwner(id string)   { t.User = id }
func (t *Todo) ParentRef() string    { return "user#" + t.User }
func (t *Todo) ParentCheck() *store.ConditionCheck {
	return ownerCheck(Users, t.User)
}

func (t *Todo) Validate() error {
	return firstError(required("title", t.Title), required("user", t.User))
}

// Favorite is the single favorites list of a user. It is written in the same
// transaction as its user, so it carries no parent check.
type Favorite struct {
	Meta
	Products []string `dynamodbav:"products,omitempty" json:"products"`
	User     string   `dynamodbav:"user" json:"user"`
}

func (*Favorite) TableName() string      { return string(Favorites) }
func (f *Favorite) EntityRef() string    { return "favorite#" + f.ID }
func (*Favorite) EntityType() string     { return "favorite" }
func (*Favorite) Collection() Collection { return Favorites }
func (*Favorite) OwnerField() string     { return "user" }
func (f *Favorite) OwnerID() string      { return f.User }
func (f *Favorite) SetOwner(id string)   { f.User = id }

func (f *Favorite) Validate() error {
	return required("user", f.User)
}

// Cart is the single shopping cart of a user, provisioned with the user.
type Cart struct {
	Meta
	Items []CartItem `dynamodbav:"items,omitempty" json:"items"`
	User  string     `dynamodbav:"user" json:"user"`
}

// CartItem is a product line in a cart.
type CartItem struct {
	Product  string `dynamodbav:"product" json:"product"`
	Quantity int    `dynamodbav:"quantity" json:"quantity"`
}

func (*Cart) TableName() string      { return string(Carts) }
func (c *Cart) EntityRef() string    { return "cart#" + c.ID }
func (*Cart) EntityType() string     { return "cart" }
func (*Cart) Collection() Collection { return Carts }
func (*Cart) OwnerField() string     { return "user" }
func (c *Cart) OwnerID() string      { return c.User }
func (c *Cart) SetOwner(id string)   { c.User = id }

func (c *Cart) Validate() error {
	if err := required("user", c.User); err != nil {
		return err
	}
	for _, item := range c.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity of %q must be positive", ErrValidation, item.Product)
		}
	}
	return nil
}

// Album groups a user's photos.
type Album struct {
	Meta
	Title string `dynamodbav:"title" json:"title"`
	User  string `dynamodbav:"user" json:"user"`
}

func (*Album) TableName() string      { return string(Albums) }
func (a *Album) EntityRef() string    { return "album#" + a.ID }
func (*Album) EntityType() string     { return "album" }
func (*Album) Collection() Collection { return Albums }
func (*Album) OwnerField() string     { return "user" }
func (a *Album) OwnerID() string      { return a.User }
func (a *Album) SetOwner(id string)   { a.User = id }
func (a *Album) ParentRef() string    { return "user#" + a.User }
func (a *Album) ParentCheck() *store.ConditionCheck {
	return ownerCheck(Users, a.User)
}

func (a *Album) Validate() error {
	return firstError(required("title", a.Title), required("user", a.User))
}

// Photo belongs to an album.
type Photo struct {
	Meta
	Title        string `dynamodbav:"title" json:"title"`
	URL          string `dynamodbav:"url" json:"url"`
	ThumbnailURL string `dynamodbav:"thumbnailUrl,omitempty" json:"thumbnailUrl,omitempty"`
	Album        string `dynamodbav:"album" json:"album"`
}

func (*Photo) TableName() string      { return string(Photos) }
func (p *Photo) EntityRef() string    { return "photo#" + p.ID }
func (*Photo) EntityType() string     { return "photo" }
func (*Photo) Collection() Collection { return Photos }
func (*Photo) OwnerField() string     { return "album" }
func (p *Photo) OwnerID() string      { return p.Album }
func (p *Photo) SetOwner(id string)   { p.Album = id }
func (p *Photo) ParentRef() string    { return "album#" + p.Album }
func (p *Photo) ParentCheck() *store.ConditionCheck {
	return ownerCheck(Albums, p.Album)
}

func (p *Photo) Validate() error {
	return firstError(required("title", p.Title), required("url", p.URL), required("album", p.Album))
}

// Post is an article written by a user.
type Post struct {
	Meta
	Title string `dynamodbav:"title" json:"title"`
	Body  string `dynamodbav:"body" json:"body"`
	User  string `dynamodbav:"user" json:"user"`
}

func (*Post) TableName() string      { return string(Posts) }
func (p *Post) EntityRef() string    { return "post#" + p.ID }
func (*Post) EntityType() string     { return "post" }
func (*Post) Collection() Collection { return Posts }
func (*Post) OwnerField() string     { return "user" }
func (p *Post) OwnerID() string      { return p.User }
func (p *Post) SetOwner(id string)   { p.User = id }
func (p *Post) ParentRef() string    { return "user#" + p.User }
func (p *Post) ParentCheck() *store.ConditionCheck {
	return ownerCheck(Users, p.User)
}

func (p *Post) Validate() error {
	return firstError(required("title", p.Title), required("body", p.Body), required("user", p.User))
}

// Comment is a reply to a post.
type Comment struct {
	Meta
	Name  string `dynamodbav:"name" json:"name"`
	Email string `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Body  string `dynamodbav:"body" json:"body"`
	Post  string `dynamodbav:"post" json:"post"`
}

func (*Comment) TableName() string      { return string(Comments) }
func (c *Comment) EntityRef() string    { return "comment#" + c.ID }
func (*Comment) EntityType() string     { return "comment" }
func (*Comment) Collection() Collection { return Comments }
func (*Comment) OwnerField() string     { return "post" }
func (c *Comment) OwnerID() string      { return c.Post }
func (c *Comment) SetOwner(id string)   { c.Post = id }
func (c *Comment) ParentRef() string    { return "post#" + c.Post }
func (c *Comment) ParentCheck() *store.ConditionCheck {
	return ownerCheck(Posts, c.Post)
}

func (c *Comment) Validate() error {
	return firstError(required("name", c.Name), required("body", c.Body), required("post", c.Post))
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Document            = (*User)(nil)
	_ store.UniqueFielder = (*User)(nil)
	_ Owned               = (*Address)(nil)
	_ Owned               = (*Company)(nil)
	_ Owned               = (*Todo)(nil)
	_ Owned               = (*Favorite)(nil)
	_ Owned               = (*Cart)(nil)
	_ Owned               = (*Album)(nil)
	_ Owned               = (*Photo)(nil)
	_ Owned               = (*Post)(nil)
	_ Owned               = (*Comment)(nil)
	_ store.ParentChecker = (*Photo)(nil)
	_ store.ParentChecker = (*Comment)(nil)
)
